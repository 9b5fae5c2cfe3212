package user

import (
	"context"
	"log"
	"net/http"
	"time"

	"velora_back_end/internal/middleware"
	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// OrderReader : lectures de commandes côté client.
type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
}

type OrderHandler struct {
	Orders OrderReader
}

func NewOrderHandler(orders OrderReader) *OrderHandler {
	return &OrderHandler{Orders: orders}
}

// ✅ Récupère toutes les commandes de l'utilisateur connecté
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.Orders.ListByUser(ctx, userID)
	if err != nil {
		log.Println("❌ Erreur récupération commandes:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commandes"})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	log.Printf("✅ %d commandes trouvées pour user %s", len(orders), userID)
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// ✅ Récupère une commande par son ID (propriétaire ou back-office)
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande manquant"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		log.Println("❌ Erreur lecture commande:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commande"})
		return
	}
	// Même réponse si la commande n'existe pas ou appartient à quelqu'un
	// d'autre : un appelant non autorisé ne doit pas pouvoir sonder les IDs.
	role := c.GetString("role")
	if order == nil || (order.UserID != userID && !middleware.Can(role, middleware.PermManageOrders)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	c.JSON(http.StatusOK, order)
}
