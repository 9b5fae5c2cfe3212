package middleware

import (
	"log"
	"net/http"

	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// Permissions connues du back-office.
const (
	PermManageProducts = "manage_products"
	PermManageOrders   = "manage_orders"
	PermManageUsers    = "manage_users"
	PermViewAnalytics  = "view_analytics"
)

// rolePermissions : table unique rôle → permissions. Tous les contrôles
// d'accès passent par Can, au lieu de re-tester le rôle dans chaque handler.
var rolePermissions = map[string][]string{
	models.RoleCustomer:  {},
	models.RoleModerator: {PermViewAnalytics},
	models.RoleStoreManager: {
		PermManageProducts,
		PermManageOrders,
		PermViewAnalytics,
	},
	models.RoleAdmin: {
		PermManageProducts,
		PermManageOrders,
		PermManageUsers,
		PermViewAnalytics,
	},
}

// Can évalue si un rôle possède une permission. ADMIN a tout.
func Can(role, permission string) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// RequirePermission protège une route derrière Can.
// La réponse est la même que la ressource existe ou non : un appelant non
// autorisé n'apprend rien.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
			c.Abort()
			return
		}

		if !Can(role, permission) {
			log.Printf("🚫 Permission refusée: %s pour rôle %s", permission, role)
			c.JSON(http.StatusForbidden, gin.H{
				"error":               "Permission insuffisante",
				"required_permission": permission,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
