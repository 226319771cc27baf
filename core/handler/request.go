package handler

import (
	"net/http"
	"net/url"
)

// Request is the transport-neutral view of an inbound request. Transport
// adapters build one per request; the handler never touches the raw
// transport object.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
}
