package middleware

import (
	"net/http"

	"github.com/middenhq/midden/pkg/httputil"
	"github.com/middenhq/midden/pkg/observability"
)

// PermissionGate enforces per-route permission slugs against the
// authenticated identity.
type PermissionGate struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewPermissionGate creates a new permission gate
func NewPermissionGate(logger *observability.Logger, metrics *observability.Metrics) *PermissionGate {
	return &PermissionGate{logger: logger, metrics: metrics}
}

// Require returns middleware that allows the request only when the identity
// in the context holds the given permission slug. Slugs are compared exactly;
// there is no wildcard or hierarchy expansion.
func (g *PermissionGate) Require(slug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r)
			if !ok {
				g.observe(slug, "unauthenticated")
				httputil.WriteUnauthorized(w, "User not authenticated")
				return
			}

			if !identity.HasPermission(slug) {
				g.observe(slug, "denied")
				g.logger.WithFields(map[string]any{
					"username":   identity.Username,
					"permission": slug,
				}).Warn("Permission denied")
				httputil.WriteForbiddenPermission(w, "Forbidden: You do not have permission to perform this action", slug)
				return
			}

			g.observe(slug, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func (g *PermissionGate) observe(slug, outcome string) {
	if g.metrics != nil {
		g.metrics.PermissionChecksTotal.WithLabelValues(slug, outcome).Inc()
	}
}
