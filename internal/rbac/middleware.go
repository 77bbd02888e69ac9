package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/amicale/amicale/internal/shared"
)

// PermissionSource resolves the permissions granted to a user.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Source PermissionSource
	Logger *slog.Logger
}

// RequireAny ensures the current user has at least one of the required
// permissions. Authorization failures never touch the data behind the
// guarded handler.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizeSet(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			granted, ok := m.grantedPermissions(w, r)
			if !ok {
				return
			}
			for p := range required {
				if _, has := granted[p]; has {
					next.ServeHTTP(w, r)
					return
				}
			}
			shared.RespondError(w, http.StatusForbidden, shared.ErrForbidden)
		})
	}
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizeSet(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			granted, ok := m.grantedPermissions(w, r)
			if !ok {
				return
			}
			for p := range required {
				if _, has := granted[p]; !has {
					shared.RespondError(w, http.StatusForbidden, shared.ErrForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) grantedPermissions(w http.ResponseWriter, r *http.Request) (map[string]struct{}, bool) {
	userID, ok := m.currentUserID(r)
	if !ok {
		shared.RespondError(w, http.StatusForbidden, shared.ErrForbidden)
		return nil, false
	}
	perms, err := m.Source.EffectivePermissions(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac resolve permissions", slog.Any("error", err))
		}
		shared.RespondError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	granted := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		granted[normalizePermission(p)] = struct{}{}
	}
	return granted, true
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func normalizeSet(perms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = normalizePermission(p)
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}
