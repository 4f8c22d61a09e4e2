// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const keyIdentifier ctxKey = "identifier"

// WithRequest annotates context with common request scoped ids
// identifier is the rate-limit client id supplied by the caller
func WithRequest(ctx context.Context, reqID, identifier string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if identifier != "" {
		ctx = context.WithValue(ctx, keyIdentifier, identifier)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// Identifier returns the rate-limit identifier on the context if present
func Identifier(ctx context.Context) string {
	if v, ok := ctx.Value(keyIdentifier).(string); ok {
		return v
	}
	return ""
}
