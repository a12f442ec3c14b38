// Package app wires repositories, services and handlers into a gin engine.
package app

import (
	"log/slog"
	"net/http"

	"pharmacy/internal/auth"
	"pharmacy/internal/config"
	"pharmacy/internal/handler"
	"pharmacy/internal/metrics"
	"pharmacy/internal/middleware"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"
	"pharmacy/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

const APIPrefix = "/api/v1"

// App holds the assembled HTTP engine and the long-running pieces main starts.
type App struct {
	Router  *gin.Engine
	Hub     *websocket.Hub
	Metrics *metrics.Metrics
	Tokens  *auth.TokenManager

	Users     service.UserService
	Inventory service.InventoryService
}

// New builds the full application on top of an open database.
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *App {
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenTTL)
	hub := websocket.NewHub()
	m := metrics.New()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	pharmacyRepo := repository.NewPharmacyRepository(db)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var observer service.TransferObserver
	if cfg.MetricsEnabled {
		observer = m
	}

	// Services
	userService := service.NewUserService(userRepo, supplierRepo, pharmacyRepo, auditRepo, txManager, tokens)
	pharmacyService := service.NewPharmacyService(pharmacyRepo, userRepo, ledgerRepo, auditRepo, txManager)
	productService := service.NewProductService(productRepo, supplierRepo, pharmacyRepo, ledgerRepo, auditRepo, txManager)
	supplierService := service.NewSupplierService(supplierRepo, userRepo, productRepo, ledgerRepo, auditRepo, txManager)
	inventoryService := service.NewInventoryService(productRepo, pharmacyRepo, supplierRepo, ledgerRepo, auditRepo, txManager, hub, observer)
	auditService := service.NewAuditService(auditRepo)

	authenticator := middleware.NewAuthenticator(tokens, userService)
	authn := authenticator.Authenticate()

	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() == gin.DebugMode {
		router.Use(gin.Logger())
	}
	router.Use(middleware.RequestLogger(logger))
	if cfg.MetricsEnabled {
		router.Use(m.Middleware())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = config.DefaultCORSOrigins()
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	router.GET("/ws", authenticator.AuthenticateStream(), func(c *gin.Context) {
		actor, _ := middleware.ActorFrom(c)
		websocket.ServeWs(hub, actor, c)
	})

	api := router.Group(APIPrefix)
	handler.NewUserHandler(userService, cfg.TokenTTL, cfg.SecureCookies).RegisterRoutes(api, authn)
	handler.NewPharmacyHandler(pharmacyService).RegisterRoutes(api, authn)
	handler.NewProductHandler(productService, inventoryService).RegisterRoutes(api, authn)
	handler.NewSupplierHandler(supplierService, inventoryService).RegisterRoutes(api, authn)
	handler.NewAuditHandler(auditService).RegisterRoutes(api, authn)

	return &App{
		Router:    router,
		Hub:       hub,
		Metrics:   m,
		Tokens:    tokens,
		Users:     userService,
		Inventory: inventoryService,
	}
}
