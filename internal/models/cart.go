package models

// CartLine : ligne de panier serveur, une seule ligne par produit.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartLineView : ligne enrichie avec les infos catalogue du moment,
// renvoyée au front (le prix n'est jamais stocké dans le panier).
type CartLineView struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"`
	ImageURL  string  `json:"image_url,omitempty"`
}
