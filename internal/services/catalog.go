package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	// ProductPageSize is the default catalog page size.
	ProductPageSize = 12

	productImageDir = "products"
	maxSlugAttempts = 100
)

var maxPrice = decimal.RequireFromString("9999999999.99")

// ProductInput is the payload of product creation.
type ProductInput struct {
	Name          string                  `json:"name" validate:"required,max=255"`
	Slug          *string                 `json:"slug" validate:"omitempty,max=255"`
	Description   *string                 `json:"description"`
	Price         string                  `json:"price" validate:"required,numeric"`
	FeaturedImage *multipart.FileHeader   `json:"-" validate:"-"`
	Images        []*multipart.FileHeader `json:"-" validate:"-"`
}

// ProductUpdate is the payload of a product edit. Nil fields are left as is.
// An empty Slug re-derives the slug from the name.
type ProductUpdate struct {
	Name           *string                 `json:"name" validate:"omitempty,min=1,max=255"`
	Slug           *string                 `json:"slug" validate:"omitempty,max=255"`
	Description    *string                 `json:"description"`
	Price          *string                 `json:"price" validate:"omitempty,numeric"`
	FeaturedImage  *multipart.FileHeader   `json:"-" validate:"-"`
	Images         []*multipart.FileHeader `json:"-" validate:"-"`
	RemoveImages   []string                `json:"remove_images" validate:"-"`
	RemoveFeatured bool                    `json:"remove_featured"`
}

// CatalogService manages products and their images.
type CatalogService struct {
	db      *gorm.DB
	storage ImageStorage
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(db *gorm.DB, storage ImageStorage) *CatalogService {
	return &CatalogService{db: db, storage: storage}
}

// List returns one page of products, newest first, and the total count.
func (s *CatalogService) List(ctx context.Context, pg utils.Pagination) ([]models.Product, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, ServerError("failed to count products", err)
	}

	var products []models.Product
	if err := db.Preload("Images", galleryOrder).
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return nil, 0, ServerError("failed to list products", err)
	}

	for i := range products {
		applyImageURLs(s.storage, &products[i])
	}
	return products, total, nil
}

// GetBySlugOrID looks a product up by id when identifier is a UUID, by slug otherwise.
func (s *CatalogService) GetBySlugOrID(ctx context.Context, identifier string) (*models.Product, error) {
	product, err := findProduct(s.db.WithContext(ctx), identifier)
	if err != nil {
		return nil, err
	}
	applyImageURLs(s.storage, product)
	return product, nil
}

// Create validates the input, stores the uploaded images and inserts the product.
func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Price = strings.TrimSpace(in.Price)

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(in))
	price := parsePrice(fields, in.Price)
	s.checkImages(fields, in.FeaturedImage, in.Images)

	db := s.db.WithContext(ctx)
	explicitSlug := in.Slug != nil && strings.TrimSpace(*in.Slug) != ""
	var productSlug string
	if explicitSlug && !fields.Has("slug") {
		productSlug = slug.Make(*in.Slug)
		if err := checkSlugFree(db, fields, productSlug, nil); err != nil {
			return nil, err
		}
	}
	if err := fields.Err(""); err != nil {
		return nil, err
	}

	featured, gallery, saved, err := s.saveUploads(in.FeaturedImage, in.Images)
	if err != nil {
		return nil, err
	}

	product := models.Product{
		Name:          in.Name,
		Description:   trimmed(in.Description),
		Price:         price,
		FeaturedImage: featured,
	}
	for i, path := range gallery {
		product.Images = append(product.Images, models.ProductImage{Path: path, DisplayOrder: i})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if !explicitSlug {
			derived, err := uniqueSlug(tx, slugBase(in.Name), nil)
			if err != nil {
				return err
			}
			productSlug = derived
		}
		product.Slug = productSlug

		if err := tx.Create(&product).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return ValidationError("slug", "the slug has already been taken")
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.deleteFiles(ctx, saved)
		return nil, asServiceError(err, "failed to create product")
	}

	slog.InfoContext(ctx, "product created", "product_id", product.ID, "slug", product.Slug)
	applyImageURLs(s.storage, &product)
	return &product, nil
}

// Update edits a product. Replaced and removed image files are deleted
// from storage once the change is committed.
func (s *CatalogService) Update(ctx context.Context, identifier string, in ProductUpdate) (*models.Product, error) {
	db := s.db.WithContext(ctx)
	product, err := findProduct(db, identifier)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		in.Name = &v
	}

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(in))
	var price decimal.Decimal
	if in.Price != nil && !fields.Has("price") {
		price = parsePrice(fields, strings.TrimSpace(*in.Price))
	}
	s.checkImages(fields, in.FeaturedImage, in.Images)

	name := product.Name
	if in.Name != nil {
		name = *in.Name
	}

	updates := map[string]interface{}{}
	if in.Slug != nil && !fields.Has("slug") {
		if explicit := strings.TrimSpace(*in.Slug); explicit != "" {
			candidate := slug.Make(explicit)
			if err := checkSlugFree(db, fields, candidate, &product.ID); err != nil {
				return nil, err
			}
			updates["slug"] = candidate
		}
	}
	if err := fields.Err(""); err != nil {
		return nil, err
	}

	featured, gallery, saved, err := s.saveUploads(in.FeaturedImage, in.Images)
	if err != nil {
		return nil, err
	}

	var obsolete []string
	if in.Name != nil {
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = trimmed(in.Description)
	}
	if in.Price != nil {
		updates["price"] = price
	}
	switch {
	case featured != nil:
		updates["featured_image"] = *featured
		if product.FeaturedImage != nil {
			obsolete = append(obsolete, *product.FeaturedImage)
		}
	case in.RemoveFeatured && product.FeaturedImage != nil:
		updates["featured_image"] = nil
		obsolete = append(obsolete, *product.FeaturedImage)
	}

	removed := galleryRemovals(product, in.RemoveImages)
	obsolete = append(obsolete, removed...)

	err = db.Transaction(func(tx *gorm.DB) error {
		if in.Slug != nil && strings.TrimSpace(*in.Slug) == "" {
			derived, err := uniqueSlug(tx, slugBase(name), &product.ID)
			if err != nil {
				return err
			}
			updates["slug"] = derived
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).Updates(updates).Error; err != nil {
				if database.IsDuplicateKey(err) {
					return ValidationError("slug", "the slug has already been taken")
				}
				return err
			}
		}

		if len(removed) > 0 {
			if err := tx.Where("product_id = ? AND path IN ?", product.ID, removed).
				Delete(&models.ProductImage{}).Error; err != nil {
				return err
			}
		}

		if len(gallery) > 0 {
			next := nextDisplayOrder(product, removed)
			images := make([]models.ProductImage, 0, len(gallery))
			for i, path := range gallery {
				images = append(images, models.ProductImage{ProductID: product.ID, Path: path, DisplayOrder: next + i})
			}
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.deleteFiles(ctx, saved)
		return nil, asServiceError(err, "failed to update product")
	}

	s.deleteFiles(ctx, obsolete)

	updated, err := findProduct(db, product.ID.String())
	if err != nil {
		return nil, err
	}
	applyImageURLs(s.storage, updated)
	return updated, nil
}

// Delete removes a product and its image files. Order lines that referenced
// it keep their snapshot and lose the product reference.
func (s *CatalogService) Delete(ctx context.Context, identifier string) error {
	db := s.db.WithContext(ctx)
	product, err := findProduct(db, identifier)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OrderItem{}).
			Where("product_id = ?", product.ID).
			Update("product_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", product.ID).Error
	})
	if err != nil {
		return ServerError("failed to delete product", err)
	}

	files := product.GalleryPaths()
	if product.FeaturedImage != nil {
		files = append(files, *product.FeaturedImage)
	}
	s.deleteFiles(ctx, files)

	slog.InfoContext(ctx, "product deleted", "product_id", product.ID)
	return nil
}

func (s *CatalogService) checkImages(fields FieldErrors, featured *multipart.FileHeader, images []*multipart.FileHeader) {
	if featured != nil {
		fields.Add("featured_image", checkImage(featured)...)
	}
	for i, file := range images {
		if file != nil {
			fields.Add(fmt.Sprintf("images.%d", i), checkImage(file)...)
		}
	}
}

// saveUploads stores the featured image and gallery files. On failure every
// file already written is removed again.
func (s *CatalogService) saveUploads(featured *multipart.FileHeader, images []*multipart.FileHeader) (*string, []string, []string, error) {
	var saved []string
	fail := func(err error) (*string, []string, []string, error) {
		s.deleteFiles(context.Background(), saved)
		return nil, nil, nil, ServerError("failed to store image", err)
	}

	var featuredPath *string
	if featured != nil {
		path, err := s.storage.Save(featured, productImageDir)
		if err != nil {
			return fail(err)
		}
		saved = append(saved, path)
		featuredPath = &path
	}

	var gallery []string
	for _, file := range images {
		if file == nil {
			continue
		}
		path, err := s.storage.Save(file, productImageDir)
		if err != nil {
			return fail(err)
		}
		saved = append(saved, path)
		gallery = append(gallery, path)
	}

	return featuredPath, gallery, saved, nil
}

func (s *CatalogService) deleteFiles(ctx context.Context, paths []string) {
	for _, path := range paths {
		if err := s.storage.Delete(path); err != nil {
			slog.WarnContext(ctx, "failed to delete image file", "path", path, "error", err)
		}
	}
}

func findProduct(db *gorm.DB, identifier string) (*models.Product, error) {
	query := db.Preload("Images", galleryOrder)
	if id, err := uuid.Parse(identifier); err == nil {
		query = query.Where("id = ? OR slug = ?", id, identifier)
	} else {
		query = query.Where("slug = ?", identifier)
	}

	var product models.Product
	if err := query.First(&product).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, NotFoundError("product not found")
		}
		return nil, ServerError("failed to load product", err)
	}
	return &product, nil
}

func galleryOrder(db *gorm.DB) *gorm.DB {
	return db.Order("display_order asc")
}

func parsePrice(fields FieldErrors, raw string) decimal.Decimal {
	if raw == "" || fields.Has("price") {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		fields.Add("price", "the price must be a number")
		return decimal.Zero
	}
	switch {
	case price.IsNegative():
		fields.Add("price", "the price must be at least 0")
	case price.GreaterThan(maxPrice):
		fields.Add("price", "the price may not be greater than "+maxPrice.StringFixed(2))
	}
	return price.Round(2)
}

func checkSlugFree(db *gorm.DB, fields FieldErrors, candidate string, exclude *uuid.UUID) error {
	if candidate == "" {
		fields.Add("slug", "the slug must contain letters or numbers")
		return nil
	}
	taken, err := slugTaken(db, candidate, exclude)
	if err != nil {
		return ServerError("failed to check slug", err)
	}
	if taken {
		fields.Add("slug", "the slug has already been taken")
	}
	return nil
}

func slugTaken(db *gorm.DB, candidate string, exclude *uuid.UUID) (bool, error) {
	query := db.Model(&models.Product{}).Where("slug = ?", candidate)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// uniqueSlug returns base, or base-2, base-3 ... whichever is free first.
func uniqueSlug(db *gorm.DB, base string, exclude *uuid.UUID) (string, error) {
	candidate := base
	for n := 2; n <= maxSlugAttempts; n++ {
		taken, err := slugTaken(db, candidate, exclude)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return base + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0], nil
}

func slugBase(name string) string {
	if base := slug.Make(name); base != "" {
		return base
	}
	return "product"
}

// galleryRemovals keeps only the requested paths that belong to product.
func galleryRemovals(product *models.Product, requested []string) []string {
	if len(requested) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(requested))
	for _, path := range requested {
		wanted[path] = struct{}{}
	}

	var removed []string
	for _, img := range product.Images {
		if _, ok := wanted[img.Path]; ok {
			removed = append(removed, img.Path)
		}
	}
	return removed
}

func nextDisplayOrder(product *models.Product, removed []string) int {
	gone := make(map[string]struct{}, len(removed))
	for _, path := range removed {
		gone[path] = struct{}{}
	}
	next := 0
	for _, img := range product.Images {
		if _, ok := gone[img.Path]; ok {
			continue
		}
		if img.DisplayOrder >= next {
			next = img.DisplayOrder + 1
		}
	}
	return next
}
