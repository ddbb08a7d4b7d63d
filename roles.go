package doclient

// UserRole is the user's role as reported by the backend
type UserRole = string

const (
	// RoleUser is the role assumed when the backend does not declare one
	RoleUser UserRole = "user"
	// RoleAdmin unlocks admin only views
	RoleAdmin UserRole = "admin"
)

// Permission names the backend attaches to a profile.
const (
	PermissionView           = "view"
	PermissionUpload         = "upload"
	PermissionEdit           = "edit"
	PermissionUserManage     = "user_manage"
	PermissionCategoryManage = "category_manage"
)

// IsAdminRole checks if role is the administrator role
func IsAdminRole(role UserRole) bool {
	return role == RoleAdmin
}
