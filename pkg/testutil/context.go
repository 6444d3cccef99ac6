package testutil

import (
	"net/http"

	"carbonregistry/internal/platform/middleware"
)

// AsActor marks req as sent by actor.
func AsActor(req *http.Request, actor string) *http.Request {
	req.Header.Set(middleware.HeaderActorID, actor)
	return req
}
