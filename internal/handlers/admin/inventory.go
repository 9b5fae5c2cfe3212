package admin

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StockAdjuster : ajustement manuel du stock par le back-office.
type StockAdjuster interface {
	SetStock(ctx context.Context, productID string, newStock int, movementType, reason, userID string) (int, error)
}

type InventoryHandler struct {
	Products StockAdjuster
}

func NewInventoryHandler(products StockAdjuster) *InventoryHandler {
	return &InventoryHandler{Products: products}
}

// 📦 PUT /api/admin/products/:id/stock
// Réapprovisionnement ou correction d'inventaire, tracé dans stock_movements.
func (h *InventoryHandler) UpdateStock(c *gin.Context) {
	productID := c.Param("id")

	var input struct {
		Stock  int    `json:"stock"`
		Type   string `json:"type"` // "restock" ou "adjustment"
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	if input.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock négatif interdit"})
		return
	}

	movementType := input.Type
	if movementType != "restock" && movementType != "adjustment" {
		movementType = "adjustment"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	prevStock, err := h.Products.SetStock(ctx, productID, input.Stock, movementType, input.Reason, c.GetString("user_id"))
	if err != nil {
		log.Println("❌ Erreur mise à jour stock:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour stock"})
		return
	}

	log.Printf("📦 Stock produit %s: %d → %d (%s)", productID, prevStock, input.Stock, movementType)
	c.JSON(http.StatusOK, gin.H{
		"productId": productID,
		"prevStock": prevStock,
		"newStock":  input.Stock,
		"type":      movementType,
	})
}
