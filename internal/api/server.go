package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopmirror/internal/api/handlers"
	"shopmirror/internal/api/middleware"
	"shopmirror/internal/cart"
	"shopmirror/internal/config"
	"shopmirror/internal/logger"
	"shopmirror/internal/search"
	"shopmirror/internal/worker/processors/export"
	"shopmirror/internal/worker/processors/validation"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the services the HTTP layer calls into.
type Dependencies struct {
	DB        *gorm.DB
	Queue     handlers.Enqueuer
	Syncer    handlers.SyncRequester
	Carts     *cart.Service
	Search    *search.Builder
	Validator *validation.Validator
	Publisher export.Publisher
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Dependencies) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.DB)
	shopifyHandler := handlers.NewShopifyHandler(deps.Validator, deps.Queue, logger)
	cartHandler := handlers.NewCartHandler(deps.Carts, deps.Publisher, logger)
	productHandler := handlers.NewProductHandler(deps.Search, logger)
	syncHandler := handlers.NewSyncHandler(deps.Syncer, logger)

	router.GET("/health", healthHandler.Check)
	if cfg.Images.Store == "local" && strings.HasPrefix(cfg.Images.BaseURL, "/") {
		router.Static(cfg.Images.BaseURL, cfg.Images.Dir)
	}
	router.POST("/webhooks/shopify", shopifyHandler.Webhook)

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Cart
		carts := v1.Group("/cart", middleware.Session(cfg.Env == "production"))
		{
			carts.GET("", cartHandler.Get)
			carts.POST("/items", cartHandler.AddItem)
			carts.DELETE("/items/:variant_id", cartHandler.RemoveItem)
			carts.POST("/reset", cartHandler.Reset)
			carts.POST("/checkout", cartHandler.Checkout)
			carts.POST("/checkout/stop", cartHandler.StopCheckout)
		}

		// Products
		products := v1.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
		}

		// Sync triggers
		v1.POST("/sync/:kind", syncHandler.Trigger)
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// GetRouter returns the router, used by tests to serve requests in-process.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
