package domain

// Product — товар витрины. Генерируется на каждый запрос и нигде не хранится.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	InStock     bool    `json:"inStock"`
}

// InventoryCategories — категории, для которых публикуется уровень остатков.
var InventoryCategories = []string{"electronics", "clothing", "books", "home", "sports"}
