package testutil

import (
	"net/http"
	"time"

	id "preclear/pkg/domain"
	"preclear/pkg/requestcontext"
)

// WithIdentity stamps the request context with an authenticated identity,
// simulating what the auth middleware does for a valid bearer token.
func WithIdentity(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithTime pins the request time so timestamp assertions are exact.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
