package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"library-backend/internal/auth"
	"library-backend/internal/cache"
	"library-backend/internal/config"
	"library-backend/internal/database"
	"library-backend/internal/db"
	"library-backend/internal/gateway"
	"library-backend/internal/handlers"
	"library-backend/internal/health"
	h "library-backend/internal/http"
	"library-backend/internal/middleware"
	"library-backend/internal/repositories"
	"library-backend/internal/services"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	pool := db.Connect(cfg)
	defer pool.Close()

	// Redis is optional; the book cache degrades to pass-through without it.
	if err := cache.Init(cfg); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (book reads go straight to Postgres)", err)
	} else {
		log.Println("[Redis] Cache connected successfully")
	}

	migrator := database.NewMigrator(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrator.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jwtManager := auth.NewJWTManager(cfg)
	healthChecker := health.NewHealthChecker(pool)

	// Repositories
	userRepo := repositories.NewUserRepository(pool)
	bookRepo := repositories.NewBookRepository(pool)
	loanRepo := repositories.NewLoanRepository(pool, bookRepo)
	paymentRepo := repositories.NewPaymentRepository(pool, bookRepo)

	// Payment gateway
	razorpayGateway := gateway.NewRazorpayGateway(
		cfg.Razorpay.KeyID,
		cfg.Razorpay.KeySecret,
		cfg.Razorpay.WebhookSecret,
	)

	// Services
	tariff := services.TariffFromConfig(cfg)
	userService := services.NewUserService(userRepo, jwtManager)
	bookService := services.NewBookService(bookRepo)
	loanService := services.NewLoanService(loanRepo, bookRepo, tariff)
	settlementService := services.NewSettlementService(
		loanRepo, paymentRepo, razorpayGateway, tariff, cfg.Server.BaseURL)
	receiptService := services.NewReceiptService("City Library", cfg.Lending.Currency)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	bookHandler := handlers.NewBookHandler(bookService)
	loanHandler := handlers.NewLoanHandler(loanService, settlementService)
	paymentHandler := handlers.NewPaymentHandler(settlementService, receiptService, razorpayGateway)
	healthHandler := handlers.NewHealthHandler(healthChecker)

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)
	corsMiddleware := middleware.NewCORS(cfg)

	router := h.NewRouter(
		authHandler,
		bookHandler,
		loanHandler,
		paymentHandler,
		healthHandler,
		authMiddleware,
	)

	var handler http.Handler = router
	handler = corsMiddleware(handler)
	handler = middleware.MetricsMiddleware(handler)
	handler = middleware.PanicRecovery(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Library backend listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
