package handlers

import (
	"encoding/json"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	catalog *services.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// productRequest is decoded from either a JSON or a multipart body.
type productRequest struct {
	Name           *string      `json:"name"`
	Slug           *string      `json:"slug"`
	Description    *string      `json:"description"`
	Price          *json.Number `json:"price"`
	RemoveImages   []string     `json:"remove_images"`
	RemoveFeatured bool         `json:"remove_featured"`

	featuredImage *multipart.FileHeader
	images        []*multipart.FileHeader
}

// ListProducts returns one page of products, newest first.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, services.ProductPageSize)

	products, total, err := h.catalog.List(c.UserContext(), pg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// GetProduct loads a product by slug or id.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetBySlugOrID(c.UserContext(), c.Params("product"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// CreateProduct inserts a product with optional featured and gallery images.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	req, err := parseProductRequest(c)
	if err != nil {
		return err
	}

	in := services.ProductInput{
		Slug:          req.Slug,
		Description:   req.Description,
		FeaturedImage: req.featuredImage,
		Images:        req.images,
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Price != nil {
		in.Price = req.Price.String()
	}

	product, err := h.catalog.Create(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct edits a product. Only the fields present in the request change.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	req, err := parseProductRequest(c)
	if err != nil {
		return err
	}

	in := services.ProductUpdate{
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		FeaturedImage:  req.featuredImage,
		Images:         req.images,
		RemoveImages:   req.RemoveImages,
		RemoveFeatured: req.RemoveFeatured,
	}
	if req.Price != nil {
		price := req.Price.String()
		in.Price = &price
	}

	product, err := h.catalog.Update(c.UserContext(), c.Params("product"), in)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product and its images.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.catalog.Delete(c.UserContext(), c.Params("product")); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "product deleted successfully"})
}

func parseProductRequest(c *fiber.Ctx) (*productRequest, error) {
	req := &productRequest{}
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := parseBody(c, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid multipart body")
	}

	req.Name = formValue(form, "name")
	req.Slug = formValue(form, "slug")
	req.Description = formValue(form, "description")
	if price := formValue(form, "price"); price != nil {
		number := json.Number(strings.TrimSpace(*price))
		req.Price = &number
	}
	req.RemoveImages = append(form.Value["remove_images"], form.Value["remove_images[]"]...)
	if flag := formValue(form, "remove_featured"); flag != nil {
		req.RemoveFeatured, _ = strconv.ParseBool(*flag)
	}

	if files := form.File["featured_image"]; len(files) > 0 {
		req.featuredImage = files[0]
	}
	req.images = append(form.File["images"], form.File["images[]"]...)

	return req, nil
}

// formValue returns the first value of key, or nil when the key is absent.
func formValue(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}
