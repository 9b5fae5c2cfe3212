package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

func TestCan(t *testing.T) {
	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{models.RoleCustomer, PermManageOrders, false},
		{models.RoleCustomer, PermViewAnalytics, false},
		{models.RoleModerator, PermViewAnalytics, true},
		{models.RoleModerator, PermManageOrders, false},
		{models.RoleStoreManager, PermManageProducts, true},
		{models.RoleStoreManager, PermManageOrders, true},
		{models.RoleStoreManager, PermManageUsers, false},
		{models.RoleAdmin, PermManageUsers, true},
		{models.RoleAdmin, PermManageOrders, true},
		{"", PermManageOrders, false},
		{"UNKNOWN_ROLE", PermViewAnalytics, false},
	}

	for _, tc := range cases {
		if got := Can(tc.role, tc.permission); got != tc.want {
			t.Errorf("Can(%q, %q) = %v, want %v", tc.role, tc.permission, got, tc.want)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.GET("/guarded",
			func(c *gin.Context) {
				if role != "" {
					c.Set("role", role)
				}
			},
			RequirePermission(PermManageOrders),
			func(c *gin.Context) { c.Status(http.StatusOK) },
		)
		return r
	}

	cases := []struct {
		role string
		want int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleStoreManager, http.StatusOK},
		{models.RoleModerator, http.StatusForbidden},
		{models.RoleCustomer, http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		newRouter(tc.role).ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("role %q: got %d, want %d", tc.role, w.Code, tc.want)
		}
	}
}
