package middleware

import "context"

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns a copy of ctx carrying a caller identifier for
// UserIDFromContext to return.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves a caller identifier from the request context,
// if one was set upstream with WithUserID. This service has no
// authentication layer (§1 treats it as an external collaborator), so no
// middleware in the router sets it; RateLimit falls back to the remote
// address when it is empty.
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey).(string)
	return uid
}
