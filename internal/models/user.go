package models

type User struct {
	ID       string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     string `json:"role,omitempty"`
}

// Rôles utilisateur (hiérarchie croissante).
const (
	RoleCustomer     = "CUSTOMER"
	RoleModerator    = "MODERATOR"
	RoleStoreManager = "STORE_MANAGER"
	RoleAdmin        = "ADMIN"
)
