package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/ugarte24/ventacontrol-pro/internal/config"
	"github.com/ugarte24/ventacontrol-pro/internal/database"
	"github.com/ugarte24/ventacontrol-pro/internal/handlers"
	mW "github.com/ugarte24/ventacontrol-pro/internal/middleware"
	"github.com/ugarte24/ventacontrol-pro/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize services
	authService := services.NewAuthService(db, redisClient)
	catalogService := services.NewCatalogService(db)
	recordService := services.NewDailyRecordService(db)
	movementService := services.NewMovementService(db, recordService)
	serviciosHandler := handlers.NewServiciosHandler(catalogService, movementService, recordService)
	productService := services.NewProductService(db, redisClient)
	clientService := services.NewClientService(db)
	saleService := services.NewSaleService(db)
	registerService := services.NewCashRegisterService(db)
	reportService := services.NewReportService(db)
	receiptService := services.NewReceiptService(saleService, redisClient, config.LoadReceiptConfig())

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Static file server for product images
	r.Handle("/static/product-images/*", http.StripPrefix("/static/product-images/",
		mW.StaticFileServer("./static/product-images")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/receipts/{token}", receiptService.LookupReceipt)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(redisClient))

			r.Get("/auth/me", authService.GetCurrentUser)
			r.With(mW.RequireAdmin).Post("/auth/register", authService.Register)

			// Service catalog
			r.Get("/servicios", serviciosHandler.ListServices)
			r.Post("/servicios", serviciosHandler.CreateService)
			r.Get("/servicios/{id}", serviciosHandler.GetService)
			r.Put("/servicios/{id}", serviciosHandler.UpdateService)
			r.Delete("/servicios/{id}", serviciosHandler.DeleteService)

			// Daily balance records
			r.Get("/servicios-dia", serviciosHandler.DailyStatus)
			r.Post("/registros-servicios", serviciosHandler.RegisterDaily)
			r.Get("/registros-servicios", serviciosHandler.ListDailyRecords)
			r.Put("/registros-servicios/{id}", serviciosHandler.UpdateDailyRecord)
			r.Delete("/registros-servicios/{id}", serviciosHandler.DeleteDailyRecord)

			// Balance movements
			r.Post("/movimientos-servicios", serviciosHandler.RecordIncrease)
			r.Get("/movimientos-servicios", serviciosHandler.ListMovements)
			r.Put("/movimientos-servicios/{id}", serviciosHandler.EditMovement)
			r.Delete("/movimientos-servicios/{id}", serviciosHandler.DeleteMovement)

			// Products
			r.Get("/productos", productService.ListProducts)
			r.Post("/productos", productService.CreateProduct)
			r.Get("/productos/stats", productService.GetStats)
			r.Get("/productos/bajo-stock", productService.ListLowStock)
			r.Get("/productos/codigo/{codigo}", productService.GetProductByCode)
			r.Get("/productos/{id}", productService.GetProduct)
			r.Put("/productos/{id}", productService.UpdateProduct)
			r.Delete("/productos/{id}", productService.DeleteProduct)
			r.Patch("/productos/{id}/estado", productService.ToggleProductStatus)
			r.Post("/productos/{id}/ajuste-stock", productService.AdjustProductStock)

			// Clients
			r.Get("/clientes", clientService.ListClients)
			r.Post("/clientes", clientService.CreateClient)
			r.Get("/clientes/{id}", clientService.GetClient)
			r.Put("/clientes/{id}", clientService.UpdateClient)
			r.Delete("/clientes/{id}", clientService.DeleteClient)
			r.Patch("/clientes/{id}/estado", clientService.ToggleClientStatus)

			// Sales
			r.Get("/ventas", saleService.ListSales)
			r.Post("/ventas", saleService.CreateSale)
			r.Get("/ventas/{id}", saleService.GetSale)
			r.Post("/ventas/{id}/anular", saleService.CancelSale)
			r.Post("/ventas/{id}/abonos", saleService.CreateCreditPayment)
			r.Post("/ventas/{id}/recibo", receiptService.GenerateReceiptQR)

			// Cash register
			r.Get("/arqueos/abierto", registerService.GetOpenRegister)
			r.Get("/arqueos", registerService.ListRegisters)
			r.Post("/arqueos/abrir", registerService.OpenRegister)
			r.Get("/arqueos/{id}", registerService.GetRegister)
			r.Put("/arqueos/{id}", registerService.UpdateRegister)
			r.Post("/arqueos/{id}/cerrar", registerService.CloseRegister)
			r.Post("/arqueos/{id}/actualizar-ventas", registerService.RefreshRegisterSales)

			// Reports
			r.Get("/reportes/ventas", reportService.SalesReport)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
