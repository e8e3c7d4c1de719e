package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientKeyKey contextKey = "client_key"
)

func setRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the correlation id the logging middleware assigned
// to the request.
func GetRequestID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(requestIDKey).(string)
	return id, ok
}

func setClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyKey, key)
}

func getClientKey(r *http.Request) (string, bool) {
	key, ok := r.Context().Value(clientKeyKey).(string)
	return key, ok
}

// ExportedClientKeyKey returns the context key for client_key (for testing).
func ExportedClientKeyKey() contextKey {
	return clientKeyKey
}
