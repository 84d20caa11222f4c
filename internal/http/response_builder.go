// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the error envelope shared by every API handler.

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON document returned with every error status.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	body        []byte
	contentType string
	err         error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Attachment marks the response as a download named filename.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// JSON encodes v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	b.err = enc.Encode(v)
	b.body = buf.Bytes()
	b.contentType = "application/json; charset=utf-8"
	return b
}

// IndentedJSON encodes v with two-space indentation, for documents meant to
// be saved and read by people.
func (b *ResponseBuilder) IndentedJSON(v any) *ResponseBuilder {
	data, err := json.MarshalIndent(v, "", "  ")
	b.err = err
	b.body = append(data, '\n')
	b.contentType = "application/json; charset=utf-8"
	return b
}

// Body sets a raw body with its content type.
func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.contentType = contentType
	b.body = content
	return b
}

// Write sends the built response. An encoding failure turns into a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "response encoding failed", http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.contentType != "" {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(r *http.Request, statusCode int, message string) *ResponseBuilder {
	body := ErrorBody{Error: message}
	if r != nil {
		body.RequestID = requestID(r)
	}
	return NewResponse().Status(statusCode).JSON(body)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(r *http.Request, message string) *ResponseBuilder {
	return ErrorResponse(r, http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(r *http.Request, message string) *ResponseBuilder {
	return ErrorResponse(r, http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(r *http.Request, message string) *ResponseBuilder {
	return ErrorResponse(r, http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(r *http.Request, message string) *ResponseBuilder {
	return ErrorResponse(r, http.StatusNotFound, message)
}

// NoContent creates an empty 204 response.
func NoContent() *ResponseBuilder {
	return NewResponse().Status(http.StatusNoContent)
}
