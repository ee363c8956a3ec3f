package gateway

import (
	"net/http"

	"bidhall/internal/domain"
)

// IdentityResolver extracts the verified identity for a connection.
// Authentication itself happens upstream (reverse proxy, auth
// middleware); the gateway only consumes the result. A false return
// means the session is anonymous: it may watch but never bid.
type IdentityResolver interface {
	Resolve(r *http.Request) (domain.Identity, bool)
}

// HeaderIdentityResolver reads the identity an authenticating proxy
// injected into the request, falling back to query parameters for
// local development.
type HeaderIdentityResolver struct{}

func (HeaderIdentityResolver) Resolve(r *http.Request) (domain.Identity, bool) {
	userID := r.Header.Get("X-User-Id")
	displayName := r.Header.Get("X-User-Name")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
		displayName = r.URL.Query().Get("display_name")
	}
	if userID == "" {
		return domain.Identity{}, false
	}
	if displayName == "" {
		displayName = userID
	}
	return domain.Identity{UserID: userID, DisplayName: displayName}, true
}
