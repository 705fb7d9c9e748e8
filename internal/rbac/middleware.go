package rbac

import (
	"context"
	"net/http"
)

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return RequireAny(perm)
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !canAny(r.Context(), perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Can reports whether the role in ctx holds perm under RolePermissions.
func Can(ctx context.Context, perm string) bool {
	return canAny(ctx, perm)
}

func canAny(ctx context.Context, perms ...string) bool {
	role := RoleFromContext(ctx)
	return role != "" && RolePermissions.AllowsAny(role, perms...)
}
