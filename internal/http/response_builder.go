// Package http exposes the budget services as a JSON API.
//
// This file implements the Builder Pattern for constructing API responses
// and the mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"dailybudget/internal/core"
	"dailybudget/internal/log"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	raw        []byte
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a payload encoded on Write.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.raw = nil
	return b
}

// Raw sets a pre-encoded body, such as a CSV download.
func (b *ResponseBuilder) Raw(contentType string, body []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.raw = body
	b.payload = nil
	return b
}

// Attachment marks the body as a download named filename.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	body := b.raw
	if b.payload != nil {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			b.statusCode = http.StatusInternalServerError
			encoded = []byte(`{"error":"Failed to encode response"}`)
		}
		body = encoded
		b.headers["Content-Type"] = "application/json"
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
	// Currency is also set for a missing asset.
	Currency  string `json:"currency,omitempty"`
	Available string `json:"available,omitempty"`
	Required  string `json:"required,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// FromError maps a service error to its response. Unknown errors become an
// opaque 500.
func FromError(err error) *ResponseBuilder {
	var (
		validation   *core.ValidationError
		insufficient *core.InsufficientBalanceError
		external     *core.ExternalServiceError
		noAsset      *core.NoAssetError
	)
	switch {
	case errors.As(err, &noAsset):
		return NewResponse().Status(http.StatusBadRequest).JSON(ErrorBody{
			Error: noAsset.Error(), Field: "currencyCode", Kind: "no_asset", Currency: noAsset.Currency,
		})
	case errors.As(err, &validation):
		return NewResponse().Status(http.StatusBadRequest).
			JSON(ErrorBody{Error: validation.Reason, Field: validation.Field})
	case errors.As(err, &insufficient):
		return NewResponse().Status(http.StatusConflict).JSON(ErrorBody{
			Error:     insufficient.Error(),
			Currency:  insufficient.Currency,
			Available: insufficient.Available.StringFixed(2),
			Required:  insufficient.Required.StringFixed(2),
		})
	case errors.As(err, &external):
		return NewResponse().Status(http.StatusBadGateway).
			JSON(ErrorBody{Error: external.Message, Kind: string(external.Kind)})
	case errors.Is(err, core.ErrNotAuthenticated):
		return UnauthorizedError("Not authenticated")
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("Not found")
	case errors.Is(err, core.ErrValidation):
		return BadRequestError(err.Error())
	}
	return InternalServerError("Internal server error")
}

// fail writes err, logging the ones that surface as a 500.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	}
	resp.Write(w)
}

func ok(w http.ResponseWriter, v any) {
	NewResponse().JSON(v).Write(w)
}

func created(w http.ResponseWriter, v any) {
	NewResponse().Status(http.StatusCreated).JSON(v).Write(w)
}

func noContent(w http.ResponseWriter) {
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// list keeps empty results encoded as [] rather than null.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
