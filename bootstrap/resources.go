package bootstrap

import (
	"context"
	"fmt"

	"github.com/artpar/declarest/core/column"
	"github.com/artpar/declarest/ports"
)

// businessEmailColumn extends the email kind with profile enrichment: on
// every save carrying the email, it asks the configured lookup service
// for city/state/country/age and writes them into the record. Enrichment
// refires even when the email did not change.
type businessEmailColumn struct {
	column.EmailColumn
	getter ports.Getter
	url    string
}

func businessEmail(name string, getter ports.Getter, url string, opts ...column.Option) *businessEmailColumn {
	return &businessEmailColumn{
		EmailColumn: *column.Email(name, opts...),
		getter:      getter,
		url:         url,
	}
}

func (c *businessEmailColumn) PreSave(ctx context.Context, data map[string]any, r column.Record) (map[string]any, error) {
	email, ok := data[c.Name()].(string)
	if !ok || email == "" || c.url == "" {
		return data, nil
	}

	var profile struct {
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
		Age     int64  `json:"age"`
	}
	if err := c.getter.GetJSON(ctx, c.url, map[string]string{"email": email}, &profile); err != nil {
		return nil, fmt.Errorf("profile lookup for %s: %w", c.Name(), err)
	}

	data["city"] = profile.City
	data["state"] = profile.State
	data["country"] = profile.Country
	data["age"] = profile.Age
	return data, nil
}

// userColumns declares the users resource. With an enrichment URL the
// email column derives the location fields; without one they stay empty.
func userColumns(clk ports.Clock, getter ports.Getter, enrichmentURL string) (*column.Registry, error) {
	return column.NewRegistry(
		column.String("name",
			column.WithRequirements(column.Required(), column.MaximumLength(255))),
		businessEmail("email", getter, enrichmentURL, column.WithUnique()),
		column.Secret("password"),
		column.String("city", column.NotWriteable()),
		column.String("state", column.NotWriteable()),
		column.String("country", column.NotWriteable()),
		column.Integer("age", column.NotWriteable()),
		column.Created("created", clk),
		column.Updated("updated", clk),
	)
}

// noteColumns declares the notes resource.
func noteColumns(clk ports.Clock, gen ports.IDGenerator) (*column.Registry, error) {
	return column.NewRegistry(
		column.UUID("external_id", gen, column.NotWriteable(), column.WithUnique()),
		column.String("title",
			column.WithRequirements(column.Required(), column.MaximumLength(500))),
		column.String("body"),
		column.Integer("author_id"),
		column.Created("created", clk),
		column.Updated("updated", clk),
	)
}
