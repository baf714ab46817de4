package models

// Product represents a sellable item in the store.
type Product struct {
	ID       string  `json:"id" gorm:"primaryKey;type:varchar(36)" mapstructure:"id"`
	Name     string  `json:"name" gorm:"uniqueIndex;type:varchar(100);not null" mapstructure:"name"`
	Category string  `json:"category" gorm:"index;type:varchar(50);not null" mapstructure:"category"`
	Price    float64 `json:"price" gorm:"not null" mapstructure:"price"`
	Stock    int     `json:"stock" gorm:"not null" mapstructure:"stock"`
	Brand    string  `json:"brand" gorm:"type:varchar(50);not null" mapstructure:"brand"`
}

// ProductInput is the payload accepted when creating a product.
type ProductInput struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Brand    string  `json:"brand"`
}

// ProductPatch carries a partial update. Nil fields keep their stored value.
type ProductPatch struct {
	Name     *string  `json:"name,omitempty"`
	Category *string  `json:"category,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Stock    *int     `json:"stock,omitempty"`
	Brand    *string  `json:"brand,omitempty"`
}

// Apply returns a copy of p with the patch merged over it. The ID never changes.
func (patch ProductPatch) Apply(p Product) Product {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	return p
}

// ProductMetrics is a derived summary of the current product set.
type ProductMetrics struct {
	TotalProducts int64    `json:"total_products"`
	TotalStock    int64    `json:"total_stock"`
	AveragePrice  string   `json:"average_price"`
	TopCategories []string `json:"top_categories"`
}
