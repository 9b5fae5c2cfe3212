package user

import (
	"errors"
	"net/http"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	Cart *cart.Service
}

func NewCartHandler(svc *cart.Service) *CartHandler {
	return &CartHandler{Cart: svc}
}

//
// 🟢 GET /api/cart
//
func (h *CartHandler) GetCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	cartID, lines, err := h.Cart.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}

	views, err := h.Cart.Enrich(c.Request.Context(), lines)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}
	if views == nil {
		views = []models.CartLineView{} // panier vide
	}

	c.JSON(http.StatusOK, gin.H{"cartId": cartID, "items": views})
}

//
// 🟢 POST /api/cart/add
//
func (h *CartHandler) AddToCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	var input struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	if input.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantité invalide"})
		return
	}

	lines, err := h.Cart.Add(c.Request.Context(), userID, input.ProductID, input.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
		case errors.Is(err, cart.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "Stock insuffisant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour panier"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Produit ajouté au panier", "items": lines})
}

//
// 🟢 PUT /api/cart/update
//
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	var input struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	lines, err := h.Cart.UpdateLine(c.Request.Context(), userID, input.ProductID, input.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
		case errors.Is(err, cart.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "Stock insuffisant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour panier"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Panier mis à jour", "items": lines})
}

//
// 🟢 DELETE /api/cart/remove/:productId
//
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	productID := c.Param("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID produit manquant"})
		return
	}

	lines, err := h.Cart.Remove(c.Request.Context(), userID, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour panier"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Produit retiré du panier", "items": lines})
}

//
// 🟢 DELETE /api/cart/clear
//
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	if err := h.Cart.Clear(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur vidage panier"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Panier vidé"})
}
