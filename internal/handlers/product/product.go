package product

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"velora_back_end/internal/fulfillment"
	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// Catalog : lecture seule du catalogue. La gestion du catalogue (création,
// recherche, catégories) relève d'un autre service.
type Catalog interface {
	Get(ctx context.Context, productID string) (*models.Product, error)
	List(ctx context.Context, limit int) ([]models.Product, error)
}

type Handler struct {
	Catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{Catalog: catalog}
}

// 🟢 GET /api/products
func (h *Handler) GetAllProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	products, err := h.Catalog.List(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture produits"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, products)
}

// 🟢 GET /api/products/:id
func (h *Handler) GetProductByID(c *gin.Context) {
	productID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	product, err := h.Catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, fulfillment.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture produit"})
		return
	}

	c.JSON(http.StatusOK, product)
}
