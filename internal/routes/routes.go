package routes

import (
	"os"
	"time"

	"velora_back_end/internal/handlers/admin"
	"velora_back_end/internal/handlers/payement"
	"velora_back_end/internal/handlers/product"
	"velora_back_end/internal/handlers/user"
	"velora_back_end/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers regroupe les handlers construits dans main.
type Handlers struct {
	Auth           *user.AuthHandler
	Cart           *user.CartHandler
	Orders         *user.OrderHandler
	Products       *product.Handler
	Checkout       *payement.CheckoutHandler
	Webhook        *payement.WebhookHandler
	AdminOrders    *admin.OrderHandler
	AdminInventory *admin.InventoryHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	frontURL := os.Getenv("FRONTEND_URL")
	if frontURL == "" {
		frontURL = "http://localhost:5173"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontURL, "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")

	// Auth
	api.POST("/auth/register", middleware.RegisterRateLimit(), h.Auth.Register)
	api.POST("/auth/login", middleware.LoginRateLimit(), h.Auth.Login)
	api.GET("/auth/me", middleware.AuthRequired(), h.Auth.Me)

	// Webhook Stripe — pas d'auth, la signature fait foi
	api.POST("/webhooks/stripe", h.Webhook.StripeWebhook)

	// Catalogue (lecture publique)
	api.GET("/products", h.Products.GetAllProducts)
	api.GET("/products/:id", h.Products.GetProductByID)

	// Panier
	cart := api.Group("/cart", middleware.AuthRequired(), middleware.CartRateLimit())
	{
		cart.GET("", h.Cart.GetCart)
		cart.POST("/add", h.Cart.AddToCart)
		cart.PUT("/update", h.Cart.UpdateCartItem)
		cart.DELETE("/remove/:productId", h.Cart.RemoveFromCart)
		cart.DELETE("/clear", h.Cart.ClearCart)
	}

	// Checkout
	api.POST("/checkout/session", middleware.AuthRequired(), h.Checkout.CreateCheckoutSession)

	// Commandes client
	orders := api.Group("/orders", middleware.AuthRequired())
	{
		orders.GET("", h.Orders.GetMyOrders)
		orders.GET("/:id", h.Orders.GetOrderByID)
	}

	// Back-office
	adminGroup := api.Group("/admin", middleware.AuthRequired())
	{
		adminGroup.GET("/orders", middleware.RequirePermission(middleware.PermManageOrders), h.AdminOrders.ListOrders)
		adminGroup.PUT("/orders/:id/status", middleware.RequirePermission(middleware.PermManageOrders), h.AdminOrders.UpdateOrderStatus)
		adminGroup.PUT("/products/:id/stock", middleware.RequirePermission(middleware.PermManageProducts), h.AdminInventory.UpdateStock)
	}
}
