package admin

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"velora_back_end/internal/models"
	"velora_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

// OrderAdminStore : opérations back-office sur les commandes.
type OrderAdminStore interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	ListAll(ctx context.Context, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order, status string) error
}

// UserEmails résout l'adresse email pour les notifications de statut.
type UserEmails interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

type OrderHandler struct {
	Orders OrderAdminStore
	Users  UserEmails
}

func NewOrderHandler(orders OrderAdminStore, users UserEmails) *OrderHandler {
	return &OrderHandler{Orders: orders, Users: users}
}

// 📋 GET /api/admin/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.Orders.ListAll(ctx, limit)
	if err != nil {
		log.Println("❌ Erreur listing commandes:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commandes"})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// 🔄 PUT /api/admin/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	var input struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	if !models.IsValidOrderStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut inconnu: " + input.Status})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commande"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	if !models.CanTransitionOrderStatus(order.Status, input.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Transition de statut interdite: " + order.Status + " → " + input.Status,
		})
		return
	}

	if err := h.Orders.UpdateStatus(ctx, order, input.Status); err != nil {
		log.Println("❌ Erreur mise à jour statut:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour statut"})
		return
	}

	log.Printf("✅ Commande %s: %s → %s", orderID, order.Status, input.Status)

	// Notification par email, en best-effort
	go func(o models.Order, status string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		email, err := h.Users.GetEmail(ctx, o.UserID)
		if err != nil {
			log.Printf("⚠️ Email statut non envoyé, utilisateur %s introuvable: %v", o.UserID, err)
			return
		}
		o.Status = status
		_ = utils.SendOrderStatusEmail(o, email, status)
	}(*order, input.Status)

	c.JSON(http.StatusOK, gin.H{
		"message": "Statut mis à jour",
		"orderId": orderID,
		"status":  input.Status,
	})
}
