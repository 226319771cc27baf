package column

import (
	"context"
	"net/mail"
	"time"

	"github.com/artpar/declarest/ports"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Kind identifiers for the built-in column types.
const (
	KindIdentity = "identity"
	KindString   = "string"
	KindInteger  = "integer"
	KindEmail    = "email"
	KindCreated  = "created"
	KindUpdated  = "updated"
	KindUUID     = "uuid"
	KindSecret   = "secret"
)

// IdentityColumn is the implicit leading id column. It is engine-managed:
// never client-writeable, allocated by the storage backend.
type IdentityColumn struct {
	Base
}

// Identity builds the implicit id column. Registries add it automatically.
func Identity() *IdentityColumn {
	return &IdentityColumn{Base: NewBase(IdentityName, KindIdentity, NotWriteable())}
}

// ToJSON normalizes the id to int64.
func (c *IdentityColumn) ToJSON(value any) any {
	if n, ok := toInt64(value); ok {
		return n
	}
	return value
}

// SQLType marks the identity as the auto-increment primary key.
func (c *IdentityColumn) SQLType() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

// StringColumn holds free-form text.
type StringColumn struct {
	Base
}

// String declares a string column.
func String(name string, opts ...Option) *StringColumn {
	return &StringColumn{Base: NewBase(name, KindString, opts...)}
}

// InputError requires the value to be a string.
func (c *StringColumn) InputError(value any) string {
	if value == nil {
		return ""
	}
	if _, ok := value.(string); !ok {
		return "value must be a string"
	}
	return ""
}

// CheckSearchValue applies the same check as InputError.
func (c *StringColumn) CheckSearchValue(value any) string {
	return c.InputError(value)
}

// IntegerColumn holds whole numbers.
type IntegerColumn struct {
	Base
}

// Integer declares an integer column.
func Integer(name string, opts ...Option) *IntegerColumn {
	return &IntegerColumn{Base: NewBase(name, KindInteger, opts...)}
}

// InputError requires a whole number. JSON decoding hands numbers over as
// float64, so whole-valued floats are accepted.
func (c *IntegerColumn) InputError(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case int, int32, int64:
		return ""
	case float64:
		if v == float64(int64(v)) {
			return ""
		}
		return "value must be an integer"
	default:
		return "value must be an integer"
	}
}

// CheckSearchValue applies the same check as InputError.
func (c *IntegerColumn) CheckSearchValue(value any) string {
	return c.InputError(value)
}

// PreSave normalizes the value to int64 before persistence. An empty string
// (a hook clearing the field) becomes zero.
func (c *IntegerColumn) PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error) {
	value, ok := data[c.Name()]
	if !ok || value == nil {
		return data, nil
	}
	if s, isStr := value.(string); isStr && s == "" {
		data[c.Name()] = int64(0)
		return data, nil
	}
	if n, isNum := toInt64(value); isNum {
		data[c.Name()] = n
	}
	return data, nil
}

// ToJSON normalizes stored values to int64.
func (c *IntegerColumn) ToJSON(value any) any {
	if n, ok := toInt64(value); ok {
		return n
	}
	return value
}

// SQLType stores integers natively.
func (c *IntegerColumn) SQLType() string { return "INTEGER" }

// EmailColumn validates RFC-shaped email addresses. Domain-specific checks
// belong to custom kinds that embed it and extend InputError.
type EmailColumn struct {
	StringColumn
}

// Email declares an email column.
func Email(name string, opts ...Option) *EmailColumn {
	return &EmailColumn{StringColumn: StringColumn{Base: NewBase(name, KindEmail, opts...)}}
}

// InputError requires a plain RFC-shaped address.
func (c *EmailColumn) InputError(value any) string {
	if value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return "value must be a string"
	}
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "invalid email address"
	}
	return ""
}

// CheckSearchValue applies the same check as InputError.
func (c *EmailColumn) CheckSearchValue(value any) string {
	return c.InputError(value)
}

// TimestampColumn is the shared machinery of the created/updated kinds.
// Never client-writeable; stamped by the engine through the injected clock.
type TimestampColumn struct {
	Base
	clock ports.Clock
}

// ToJSON serializes timestamps as RFC 3339. The memory backend stores
// time.Time, SQLite stores RFC 3339 text; both normalize to the same form.
func (c *TimestampColumn) ToJSON(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case string:
		return v
	case nil:
		return nil
	default:
		return value
	}
}

// CreatedColumn stamps the record's creation time once.
type CreatedColumn struct {
	TimestampColumn
}

// Created declares a creation timestamp column.
func Created(name string, clk ports.Clock) *CreatedColumn {
	return &CreatedColumn{TimestampColumn{Base: NewBase(name, KindCreated, NotWriteable()), clock: clk}}
}

// PreSave stamps the column on create and leaves it untouched on update.
func (c *CreatedColumn) PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error) {
	if !r.Exists() {
		data[c.Name()] = c.clock.Now()
	}
	return data, nil
}

// UpdatedColumn stamps the record's last-write time on every save.
type UpdatedColumn struct {
	TimestampColumn
}

// Updated declares a last-updated timestamp column.
func Updated(name string, clk ports.Clock) *UpdatedColumn {
	return &UpdatedColumn{TimestampColumn{Base: NewBase(name, KindUpdated, NotWriteable()), clock: clk}}
}

// PreSave stamps the column on every save.
func (c *UpdatedColumn) PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error) {
	data[c.Name()] = c.clock.Now()
	return data, nil
}

// UUIDColumn holds UUID values and fills a generated one on create when
// the client supplies none.
type UUIDColumn struct {
	StringColumn
	gen ports.IDGenerator
}

// UUID declares a uuid column backed by the given generator.
func UUID(name string, gen ports.IDGenerator, opts ...Option) *UUIDColumn {
	return &UUIDColumn{
		StringColumn: StringColumn{Base: NewBase(name, KindUUID, opts...)},
		gen:          gen,
	}
}

// InputError requires a parseable UUID.
func (c *UUIDColumn) InputError(value any) string {
	if value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return "value must be a string"
	}
	if s == "" {
		return ""
	}
	if _, err := uuid.Parse(s); err != nil {
		return "invalid UUID format"
	}
	return ""
}

// CheckSearchValue applies the same check as InputError.
func (c *UUIDColumn) CheckSearchValue(value any) string {
	return c.InputError(value)
}

// PreSave generates a value on create when none was provided.
func (c *UUIDColumn) PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error) {
	if r.Exists() {
		return data, nil
	}
	if v, ok := data[c.Name()]; !ok || v == nil || v == "" {
		data[c.Name()] = c.gen.New()
	}
	return data, nil
}

// SecretColumn holds sensitive values: hashed with bcrypt before
// persistence and never serialized.
type SecretColumn struct {
	Base
	cost int
}

// Secret declares a secret column.
func Secret(name string, opts ...Option) *SecretColumn {
	return &SecretColumn{Base: NewBase(name, KindSecret, opts...), cost: bcrypt.DefaultCost}
}

// InputError requires the value to be a string.
func (c *SecretColumn) InputError(value any) string {
	if value == nil {
		return ""
	}
	if _, ok := value.(string); !ok {
		return "value must be a string"
	}
	return ""
}

// PreSave replaces the plaintext value with its bcrypt hash.
func (c *SecretColumn) PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error) {
	value, ok := data[c.Name()]
	if !ok || value == nil {
		return data, nil
	}
	s, isStr := value.(string)
	if !isStr || s == "" {
		return data, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s), c.cost)
	if err != nil {
		return nil, err
	}
	data[c.Name()] = string(hash)
	return data, nil
}

// Compare checks a plaintext candidate against a stored hash.
func (c *SecretColumn) Compare(stored any, candidate string) bool {
	s, ok := stored.(string)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s), []byte(candidate)) == nil
}

// ToJSON redacts the value: secrets are never exposed.
func (c *SecretColumn) ToJSON(value any) any { return nil }

// toInt64 normalizes the numeric forms seen from JSON decoding and the two
// storage backends.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}
