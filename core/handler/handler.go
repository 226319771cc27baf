// Package handler implements the restful resource handler: the state
// machine that turns a declarative resource configuration into a working
// CRUD-over-HTTP surface. It routes, authenticates, validates, drives the
// model lifecycle, and serializes the response envelope; every failure is
// converted to an envelope before it can reach the transport adapter.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/declarest/core/authn"
	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/column"
	"github.com/artpar/declarest/core/model"
)

const (
	defaultPageSize = 100
	defaultMaxPage  = 200
)

// Config declares one restful resource.
type Config struct {
	// Models is the gateway to the resource's table. Required.
	Models *model.Models

	// ReadableColumns controls serialization. Nil means every column.
	// The identity column is always serialized first regardless.
	ReadableColumns []string

	// WriteableColumns controls accepted input. Nil means every column
	// declared writeable.
	WriteableColumns []string

	// SearchableColumns controls accepted list filters and sort keys.
	// Nil means none: filter capability is opt-in.
	SearchableColumns []string

	// DefaultSortColumn orders lists when no sort parameter is given.
	// Defaults to the identity column.
	DefaultSortColumn string

	// Authentication gates every request. Defaults to authn.Public.
	Authentication authn.Strategy

	// DefaultPageSize is the list page size when no limit is given.
	// Defaults to 100.
	DefaultPageSize int

	// MaxPageSize caps an explicit limit parameter. Defaults to 200.
	MaxPageSize int

	Logger zerolog.Logger
}

// Restful handles all CRUD operations for one resource.
type Restful struct {
	models      *model.Models
	identity    column.Column
	readable    []column.Column
	writeable   []column.Column
	searchable  map[string]column.Column
	defaultSort string
	auth        authn.Strategy
	pageSize    int
	maxPageSize int
	log         zerolog.Logger
}

// NewRestful validates a resource configuration and builds its handler.
// Configuration errors surface here, at startup, never per request.
func NewRestful(cfg Config) (*Restful, error) {
	if cfg.Models == nil {
		return nil, errors.New("restful: Models is required")
	}
	cols := cfg.Models.Columns()

	identity, ok := cols.Get(column.IdentityName)
	if !ok {
		return nil, errors.New("restful: registry has no identity column")
	}

	readable, err := resolveColumns(cols, cfg.ReadableColumns, "readable")
	if err != nil {
		return nil, err
	}
	if readable == nil {
		readable = cols.Columns()
	}

	writeable, err := resolveColumns(cols, cfg.WriteableColumns, "writeable")
	if err != nil {
		return nil, err
	}
	if writeable == nil {
		for _, c := range cols.Columns() {
			if c.Writeable() {
				writeable = append(writeable, c)
			}
		}
	}
	for _, c := range writeable {
		if !c.Writeable() {
			return nil, fmt.Errorf("restful: column %q is not writeable", c.Name())
		}
	}

	searchableList, err := resolveColumns(cols, cfg.SearchableColumns, "searchable")
	if err != nil {
		return nil, err
	}
	searchable := make(map[string]column.Column, len(searchableList))
	for _, c := range searchableList {
		searchable[c.Name()] = c
	}

	sortColumn := cfg.DefaultSortColumn
	if sortColumn == "" {
		sortColumn = column.IdentityName
	}
	if !cols.Has(sortColumn) {
		return nil, fmt.Errorf("restful: unknown default sort column %q", sortColumn)
	}

	auth := cfg.Authentication
	if auth == nil {
		auth = authn.Public{}
	}

	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPage := cfg.MaxPageSize
	if maxPage <= 0 {
		maxPage = defaultMaxPage
	}
	if pageSize > maxPage {
		return nil, fmt.Errorf("restful: default page size %d exceeds max %d", pageSize, maxPage)
	}

	return &Restful{
		models:      cfg.Models,
		identity:    identity,
		readable:    readable,
		writeable:   writeable,
		searchable:  searchable,
		defaultSort: sortColumn,
		auth:        auth,
		pageSize:    pageSize,
		maxPageSize: maxPage,
		log:         cfg.Logger,
	}, nil
}

// Models returns the resource's model gateway.
func (h *Restful) Models() *model.Models { return h.models }

// ReadableColumns returns the serialized columns in registration order.
func (h *Restful) ReadableColumns() []column.Column { return h.readable }

// WriteableColumns returns the accepted input columns.
func (h *Restful) WriteableColumns() []column.Column { return h.writeable }

// SearchableColumnNames returns the accepted filter/sort column names.
func (h *Restful) SearchableColumnNames() []string {
	names := make([]string, 0, len(h.searchable))
	for _, c := range h.models.Columns().Columns() {
		if _, ok := h.searchable[c.Name()]; ok {
			names = append(names, c.Name())
		}
	}
	return names
}

type operation int

const (
	opList operation = iota
	opRead
	opCreate
	opUpdate
	opDelete
)

// Handle drives one request through the full pipeline and always returns
// an envelope.
func (h *Restful) Handle(ctx context.Context, req Request) Response {
	op, id, ok := route(req.Method, req.Path)
	if !ok {
		return NotFound()
	}

	if err := h.auth.Authenticate(ctx, req.Headers); err != nil {
		return Unauthenticated()
	}

	switch op {
	case opList:
		return h.list(ctx, req)
	case opRead:
		return h.read(ctx, id)
	case opCreate:
		return h.create(ctx, req)
	case opUpdate:
		return h.update(ctx, req, id)
	case opDelete:
		return h.delete(ctx, id)
	}
	return NotFound()
}

// route selects the operation from HTTP method plus the presence of an id
// path segment. Anything else is an unknown route.
func route(method, path string) (operation, int64, bool) {
	trimmed := strings.Trim(path, "/")

	if trimmed == "" {
		switch method {
		case http.MethodGet:
			return opList, 0, true
		case http.MethodPost:
			return opCreate, 0, true
		}
		return 0, 0, false
	}

	if strings.Contains(trimmed, "/") {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, false
	}

	switch method {
	case http.MethodGet:
		return opRead, id, true
	case http.MethodPut, http.MethodPatch:
		return opUpdate, id, true
	case http.MethodDelete:
		return opDelete, id, true
	}
	return 0, 0, false
}

func (h *Restful) list(ctx context.Context, req Request) Response {
	errs := map[string]string{}

	start := 0
	if raw := req.Query.Get("start"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs["start"] = "value must be a non-negative integer"
		} else {
			start = n
		}
	}

	limit := h.pageSize
	if raw := req.Query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil || n <= 0:
			errs["limit"] = "value must be a positive integer"
		case n > h.maxPageSize:
			errs["limit"] = fmt.Sprintf("value must be at most %d", h.maxPageSize)
		default:
			limit = n
		}
	}

	sortColumn := h.defaultSort
	if raw := req.Query.Get("sort"); raw != "" {
		if _, ok := h.searchable[raw]; !ok {
			errs["sort"] = "cannot sort by this column"
		} else {
			sortColumn = raw
		}
	}

	sortDesc := false
	if raw := req.Query.Get("direction"); raw != "" {
		switch strings.ToLower(raw) {
		case "asc":
		case "desc":
			sortDesc = true
		default:
			errs["direction"] = "value must be asc or desc"
		}
	}

	// Filter parameters outside the searchable set are silently ignored so
	// the handler never leaks unintended filter capability.
	filters := map[string]any{}
	for name, c := range h.searchable {
		if _, ok := req.Query[name]; !ok {
			continue
		}
		value := coerceSearchValue(c, req.Query.Get(name))
		if msg := c.CheckSearchValue(value); msg != "" {
			errs[name] = msg
			continue
		}
		filters[name] = value
	}

	if len(errs) > 0 {
		return InputErrors(errs)
	}

	list, _, err := h.models.Query(ctx, backend.Query{
		Filters:    filters,
		SortColumn: sortColumn,
		SortDesc:   sortDesc,
		Start:      start,
		Limit:      limit,
	})
	if err != nil {
		h.log.Error().Err(err).Str("table", h.models.Name()).Msg("list query failed")
		return Failure()
	}

	data := make([]*Fields, 0, len(list))
	for _, m := range list {
		data = append(data, h.serialize(m))
	}
	return SuccessList(data, Pagination{
		NumberResults: len(data),
		Start:         start,
		Limit:         limit,
	})
}

func (h *Restful) read(ctx context.Context, id int64) Response {
	m, err := h.models.Find(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return NotFound()
		}
		h.log.Error().Err(err).Str("table", h.models.Name()).Int64("id", id).Msg("read failed")
		return Failure()
	}
	return Success(h.serialize(m))
}

func (h *Restful) create(ctx context.Context, req Request) Response {
	payload, errResp := h.parseBody(req.Body)
	if errResp != nil {
		return *errResp
	}

	if errs := h.validate(payload, true); len(errs) > 0 {
		return InputErrors(errs)
	}

	m := h.models.Blank()
	if err := m.Save(ctx, payload); err != nil {
		h.log.Error().Err(err).Str("table", h.models.Name()).Msg("create failed")
		return Failure()
	}
	return Success(h.serialize(m))
}

func (h *Restful) update(ctx context.Context, req Request, id int64) Response {
	m, err := h.models.Find(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return NotFound()
		}
		h.log.Error().Err(err).Str("table", h.models.Name()).Int64("id", id).Msg("update lookup failed")
		return Failure()
	}

	payload, errResp := h.parseBody(req.Body)
	if errResp != nil {
		return *errResp
	}

	// Partial update: only the keys present in the body are validated and
	// written; everything else keeps its persisted value.
	if errs := h.validate(payload, false); len(errs) > 0 {
		return InputErrors(errs)
	}

	if err := m.Save(ctx, payload); err != nil {
		h.log.Error().Err(err).Str("table", h.models.Name()).Int64("id", id).Msg("update failed")
		return Failure()
	}
	return Success(h.serialize(m))
}

func (h *Restful) delete(ctx context.Context, id int64) Response {
	m, err := h.models.Find(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return NotFound()
		}
		h.log.Error().Err(err).Str("table", h.models.Name()).Int64("id", id).Msg("delete lookup failed")
		return Failure()
	}
	if err := m.Delete(ctx); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return NotFound()
		}
		h.log.Error().Err(err).Str("table", h.models.Name()).Int64("id", id).Msg("delete failed")
		return Failure()
	}
	return Success(NewFields())
}

// parseBody decodes the request body down to the writeable columns.
// Unknown fields and non-writeable columns are ignored, not errors.
func (h *Restful) parseBody(body []byte) (map[string]any, *Response) {
	raw := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			resp := InputErrors(map[string]string{"body": "request body must be a JSON object"})
			return nil, &resp
		}
	}

	payload := make(map[string]any, len(raw))
	for _, c := range h.writeable {
		if value, ok := raw[c.Name()]; ok {
			payload[c.Name()] = value
		}
	}
	return payload, nil
}

// validate aggregates every column failure into one mapping. No backend
// mutation happens if any column fails. checkAbsent distinguishes create
// (requirements run even for absent columns) from partial update.
func (h *Restful) validate(payload map[string]any, checkAbsent bool) map[string]string {
	errs := map[string]string{}
	for _, c := range h.writeable {
		value, present := payload[c.Name()]
		if !present && !checkAbsent {
			continue
		}

		failed := false
		for _, req := range c.Requirements() {
			if msg := req.Check(value, present); msg != "" {
				errs[c.Name()] = msg
				failed = true
				break
			}
		}
		if failed || !present {
			continue
		}
		if msg := c.InputError(value); msg != "" {
			errs[c.Name()] = msg
		}
	}
	return errs
}

// serialize produces the ordered field set for one record: identity first,
// then the readable columns in registration order.
func (h *Restful) serialize(m *model.Model) *Fields {
	f := NewFields()
	f.Set(column.IdentityName, h.identity.ToJSON(m.Get(column.IdentityName)))
	for _, c := range h.readable {
		if c.Name() == column.IdentityName {
			continue
		}
		f.Set(c.Name(), c.ToJSON(m.Get(c.Name())))
	}
	return f
}

// coerceSearchValue converts the raw query-string value into the form the
// column expects, so filtering behaves identically across backends.
func coerceSearchValue(c column.Column, raw string) any {
	switch c.Kind() {
	case column.KindInteger, column.KindIdentity:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	}
	return raw
}

// resolveColumns maps configured names onto registry columns, preserving
// registration order. Nil input stays nil so callers can apply defaults.
func resolveColumns(cols *column.Registry, names []string, role string) ([]column.Column, error) {
	if names == nil {
		return nil, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if !cols.Has(name) {
			return nil, fmt.Errorf("restful: unknown %s column %q", role, name)
		}
		wanted[name] = true
	}
	var out []column.Column
	for _, c := range cols.Columns() {
		if wanted[c.Name()] {
			out = append(out, c)
		}
	}
	if out == nil {
		out = []column.Column{}
	}
	return out, nil
}
