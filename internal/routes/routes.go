package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// Register wires up all HTTP routes. cache may be nil.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, cache services.TokenCache) {
	storage := services.NewLocalImageStorage(cfg.StorageDir, cfg.StorageURL)
	identity := services.NewIdentityService(db, cfg.JWTSecret, cfg.TokenExpires, cache)
	catalog := services.NewCatalogService(db, storage)
	orders := services.NewOrderService(db, services.NewOrderNumberGenerator(), storage)

	authHandler := handlers.NewAuthHandler(identity)
	profileHandler := handlers.NewProfileHandler(identity)
	productHandler := handlers.NewProductHandler(catalog)
	orderHandler := handlers.NewOrderHandler(orders)

	staffOnly := middleware.RequirePrincipal(identity, models.PrincipalUser)
	customerOnly := middleware.RequirePrincipal(identity, models.PrincipalCustomer)

	app.Static(cfg.StorageURL, cfg.StorageDir)

	api := app.Group("/api")
	api.Get("/health", health(db))

	// Staff auth
	api.Post("/register", authHandler.RegisterUser)
	api.Post("/login", authHandler.Login(models.PrincipalUser))
	api.Get("/me", staffOnly, profileHandler.GetProfile)
	api.Post("/logout", staffOnly, authHandler.Logout)

	// Customer auth
	customer := api.Group("/customer")
	customer.Post("/register", authHandler.RegisterCustomer)
	customer.Post("/login", authHandler.Login(models.PrincipalCustomer))
	customer.Get("/me", customerOnly, profileHandler.GetProfile)
	customer.Put("/me", customerOnly, profileHandler.UpdateCustomerProfile)
	customer.Post("/logout", customerOnly, authHandler.Logout)

	// Products
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:product", productHandler.GetProduct)
	products.Post("/", staffOnly, productHandler.CreateProduct)
	products.Put("/:product", staffOnly, productHandler.UpdateProduct)
	products.Delete("/:product", staffOnly, productHandler.DeleteProduct)

	// Orders
	api.Post("/orders", middleware.OptionalPrincipal(identity, models.PrincipalCustomer), orderHandler.CreateOrder)
	customerOrders := api.Group("/orders", customerOnly)
	customerOrders.Get("/", orderHandler.ListOrders)
	customerOrders.Get("/:id", orderHandler.GetOrder)
	customerOrders.Put("/:id", orderHandler.UpdateOrder)
	customerOrders.Delete("/:id", orderHandler.DeleteOrder)
}

func health(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "status": "unavailable"})
		}
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	}
}
