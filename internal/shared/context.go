package shared

import "context"

// Role names accepted by the authorization checks.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RoleManager    = "manager"
)

// AuthContext describes the authenticated principal attached to a request.
type AuthContext struct {
	UserID    int64
	Username  string
	Role      string
	CanteenID int64 // assigned canteen for managers, zero otherwise
}

// IsAdmin reports whether the principal holds an admin role.
func (a *AuthContext) IsAdmin() bool {
	return a != nil && (a.Role == RoleAdmin || a.Role == RoleSuperAdmin)
}

// CanAccessCanteen reports whether the principal may act on the canteen.
// Managers are restricted to their assigned canteen, other roles are not.
func (a *AuthContext) CanAccessCanteen(canteenID int64) bool {
	if a == nil {
		return false
	}
	if a.Role == RoleManager {
		return a.CanteenID == canteenID
	}
	return true
}

type authContextKey struct{}

// ContextWithAuth stores the principal in context.
func ContextWithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext extracts the principal from context.
func AuthFromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
