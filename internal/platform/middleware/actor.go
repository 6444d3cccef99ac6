package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/httputil"
	"carbonregistry/pkg/requestcontext"
)

// HeaderActorID carries the identity of the registry officer. Authentication
// happens in front of the registry; the value is trusted and recorded as-is.
const HeaderActorID = "X-Actor-ID"

const maxActorLen = 128

// Actor copies the actor header into the request context when present.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(HeaderActorID)); actor != "" {
			r = r.WithContext(requestcontext.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor refuses requests without an acting principal, so every audit
// entry and constants version names who made it.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.Actor(ctx)
			if actor == "" {
				actor = strings.TrimSpace(r.Header.Get(HeaderActorID))
			}
			if actor == "" || len(actor) > maxActorLen {
				logger.WarnContext(ctx, "request without a valid actor",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, HeaderActorID+" header is required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
