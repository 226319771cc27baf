package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Status is the envelope outcome discriminator.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailure     Status = "failure"
	StatusInputErrors Status = "input_errors"
)

// Pagination describes the window of a list response. NumberResults counts
// the rows actually returned in this page.
type Pagination struct {
	NumberResults int `json:"numberResults"`
	Start         int `json:"start"`
	Limit         int `json:"limit"`
}

// Fields is an ordered field set. It serializes in insertion order, which
// the handler drives from column registration order. An ordinary map would
// lose that ordering.
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields creates an empty ordered field set.
func NewFields() *Fields {
	return &Fields{values: make(map[string]any)}
}

// Set appends a field, or replaces its value in place if already present.
func (f *Fields) Set(key string, value any) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns a field value and whether it is present.
func (f *Fields) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Len returns the number of fields.
func (f *Fields) Len() int { return len(f.keys) }

// MarshalJSON writes the fields as a JSON object in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(f.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Response is the uniform envelope every handler outcome is converted to.
// No error escapes past it to the transport adapter.
type Response struct {
	// Code is the HTTP status for transport adapters; not serialized.
	Code int

	Status      Status
	Data        any
	Pagination  *Pagination
	InputErrors map[string]string
}

// MarshalJSON writes the envelope with a fixed key order: status, data,
// pagination, input_errors. Absent sections are omitted entirely.
func (r Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"status":`)
	sb, err := json.Marshal(r.Status)
	if err != nil {
		return nil, err
	}
	buf.Write(sb)

	if r.Data != nil {
		buf.WriteString(`,"data":`)
		db, err := json.Marshal(r.Data)
		if err != nil {
			return nil, err
		}
		buf.Write(db)
	}
	if r.Pagination != nil {
		buf.WriteString(`,"pagination":`)
		pb, err := json.Marshal(r.Pagination)
		if err != nil {
			return nil, err
		}
		buf.Write(pb)
	}
	if len(r.InputErrors) > 0 {
		buf.WriteString(`,"input_errors":`)
		eb, err := json.Marshal(r.InputErrors)
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Success wraps a single serialized record.
func Success(data any) Response {
	return Response{Code: http.StatusOK, Status: StatusSuccess, Data: data}
}

// SuccessList wraps a page of serialized records.
func SuccessList(data []*Fields, p Pagination) Response {
	return Response{Code: http.StatusOK, Status: StatusSuccess, Data: data, Pagination: &p}
}

// InputErrors reports per-column validation failures.
func InputErrors(errs map[string]string) Response {
	return Response{Code: http.StatusBadRequest, Status: StatusInputErrors, InputErrors: errs}
}

// NotFound reports a missing record or unknown route.
func NotFound() Response {
	return Response{Code: http.StatusNotFound, Status: StatusFailure}
}

// Unauthenticated reports a rejected authentication.
func Unauthenticated() Response {
	return Response{Code: http.StatusUnauthorized, Status: StatusFailure}
}

// Failure reports any other error generically, leaking no internal detail.
func Failure() Response {
	return Response{Code: http.StatusInternalServerError, Status: StatusFailure}
}
