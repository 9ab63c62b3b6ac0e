package framez

import (
	"maps"

	"github.com/google/uuid"
)

// BasicRequest is a minimal Request carrying an id, a path, and
// attributes that units can attach for units further down the chain.
// It is immutable: WithAttribute returns a copy.
type BasicRequest struct {
	attributes map[string]any
	id         string
	method     string
	path       string
}

// NewRequest creates a BasicRequest with a random id.
func NewRequest(method, path string) *BasicRequest {
	return &BasicRequest{
		id:     uuid.NewString(),
		method: method,
		path:   path,
	}
}

// Path implements Request.
func (r *BasicRequest) Path() string {
	return r.path
}

// Method returns the request method.
func (r *BasicRequest) Method() string {
	return r.method
}

// ID returns the request id.
func (r *BasicRequest) ID() string {
	return r.id
}

// Attribute returns the attribute stored under key.
func (r *BasicRequest) Attribute(key string) (any, bool) {
	v, ok := r.attributes[key]
	return v, ok
}

// WithAttribute returns a copy of r with key set to value.
func (r *BasicRequest) WithAttribute(key string, value any) *BasicRequest {
	clone := *r
	clone.attributes = maps.Clone(r.attributes)
	if clone.attributes == nil {
		clone.attributes = make(map[string]any, 1)
	}
	clone.attributes[key] = value
	return &clone
}

// WithPath returns a copy of r addressed to path.
func (r *BasicRequest) WithPath(path string) *BasicRequest {
	clone := *r
	clone.path = path
	return &clone
}

// BasicResponse is a minimal Response with a status, headers, and body.
type BasicResponse struct {
	Header map[string]string
	Body   string
	Status int
}

// NewResponse creates a BasicResponse.
func NewResponse(status int, body string) *BasicResponse {
	return &BasicResponse{Status: status, Body: body, Header: map[string]string{}}
}

// StatusCode implements Response.
func (r *BasicResponse) StatusCode() int {
	return r.Status
}

// WithHeader sets a header and returns r.
func (r *BasicResponse) WithHeader(key, value string) *BasicResponse {
	if r.Header == nil {
		r.Header = map[string]string{}
	}
	r.Header[key] = value
	return r
}
