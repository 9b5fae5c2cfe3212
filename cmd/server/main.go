package main

import (
	"context"
	"log"
	"os"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/config"
	"velora_back_end/internal/database"
	"velora_back_end/internal/fulfillment"
	"velora_back_end/internal/handlers/admin"
	"velora_back_end/internal/handlers/payement"
	"velora_back_end/internal/handlers/product"
	"velora_back_end/internal/handlers/user"
	"velora_back_end/internal/notify"
	"velora_back_end/internal/routes"
	"velora_back_end/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
)

func main() {
	config.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()

	// ✅ Initialiser les prepared statements pour améliorer les performances
	database.InitPreparedStatements()

	// ✅ Pré-chauffer la connexion Redis
	warmupRedis()

	// Stores
	products := store.NewScyllaProducts()
	orders := store.NewScyllaOrders()
	users := store.NewScyllaUsers()
	carts := store.NewRedisCarts()
	locks := store.NewRedisLocks()

	// Services
	cartSvc := cart.NewService(carts, products)
	fulfillSvc := fulfillment.NewService(products, orders, cartSvc, locks).
		WithNotifier(notify.NewEmailNotifier(users))

	// Handlers
	h := routes.Handlers{
		Auth:           user.NewAuthHandler(users),
		Cart:           user.NewCartHandler(cartSvc),
		Orders:         user.NewOrderHandler(orders),
		Products:       product.NewHandler(products),
		Checkout:       payement.NewCheckoutHandler(cartSvc),
		Webhook:        payement.NewWebhookHandler(fulfillSvc),
		AdminOrders:    admin.NewOrderHandler(orders, users),
		AdminInventory: admin.NewInventoryHandler(products),
	}

	r := gin.Default()
	routes.RegisterRoutes(r, h)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Velora lancé sur le port", port)
	r.Run(":" + port)
}

// warmupRedis établit la connexion Redis avant la première requête
func warmupRedis() {
	ctx := context.Background()
	if err := database.Redis.Ping(ctx).Err(); err == nil {
		log.Println("✅ Connexion Redis pré-chauffée")
	}
}
