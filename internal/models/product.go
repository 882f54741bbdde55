package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is authoritative only until an order
// snapshots it.
type Product struct {
	BaseModel
	Name          string          `gorm:"size:255;not null" json:"name"`
	Slug          string          `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Description   *string         `json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	FeaturedImage *string         `gorm:"size:500" json:"featured_image"`
	Images        []ProductImage  `gorm:"constraint:OnDelete:CASCADE" json:"images"`

	FeaturedImageURL *string  `gorm:"-" json:"featured_image_url"`
	ImagesURLs       []string `gorm:"-" json:"images_urls"`
}

// ProductImage is one entry of a product's ordered gallery.
type ProductImage struct {
	BaseModel
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Path         string    `gorm:"size:500;not null" json:"path"`
	DisplayOrder int       `json:"display_order"`

	URL string `gorm:"-" json:"url"`
}

// GalleryPaths returns the storage paths of the gallery in display order.
func (p *Product) GalleryPaths() []string {
	paths := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		paths = append(paths, img.Path)
	}
	return paths
}
