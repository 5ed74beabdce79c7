package http

import (
	"net/http"

	"library-backend/internal/handlers"
	"library-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	authHandler *handlers.AuthHandler,
	bookHandler *handlers.BookHandler,
	loanHandler *handlers.LoanHandler,
	paymentHandler *handlers.PaymentHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()

	// Public API routes - Authentication
	r.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Gateway-facing routes. The webhook authenticates via signature, the
	// browser callbacks via the idempotent capture.
	r.HandleFunc("/api/payments/webhook", paymentHandler.Webhook).Methods("POST")
	r.HandleFunc("/api/payments/callback/success", paymentHandler.CallbackSuccess).Methods("GET")
	r.HandleFunc("/api/payments/callback/cancel", paymentHandler.CallbackCancel).Methods("GET")

	// Protected API routes - Books
	booksAPI := r.PathPrefix("/api/books").Subrouter()
	booksAPI.Use(authMiddleware.Authenticate)
	booksAPI.HandleFunc("", bookHandler.ListBooks).Methods("GET")
	booksAPI.HandleFunc("", authMiddleware.RequireStaff(http.HandlerFunc(bookHandler.CreateBook)).ServeHTTP).Methods("POST")
	booksAPI.HandleFunc("/{id}", bookHandler.GetBook).Methods("GET")
	booksAPI.HandleFunc("/{id}/borrow", loanHandler.Borrow).Methods("POST")

	// Protected API routes - Loans
	loansAPI := r.PathPrefix("/api/loans").Subrouter()
	loansAPI.Use(authMiddleware.Authenticate)
	loansAPI.HandleFunc("", authMiddleware.RequireStaff(http.HandlerFunc(loanHandler.ListLoans)).ServeHTTP).Methods("GET")
	loansAPI.HandleFunc("/my", loanHandler.MyLoans).Methods("GET")
	loansAPI.HandleFunc("/{id}", loanHandler.GetLoan).Methods("GET")
	loansAPI.HandleFunc("/{id}", authMiddleware.RequireAdmin(http.HandlerFunc(loanHandler.UpdateLoan)).ServeHTTP).Methods("PUT")
	loansAPI.HandleFunc("/{id}", authMiddleware.RequireAdmin(http.HandlerFunc(loanHandler.DeleteLoan)).ServeHTTP).Methods("DELETE")
	loansAPI.HandleFunc("/{id}/return", loanHandler.Return).Methods("POST")
	loansAPI.HandleFunc("/{id}/checkout", paymentHandler.Checkout).Methods("POST")

	// Protected API routes - Payments
	paymentsAPI := r.PathPrefix("/api/payments").Subrouter()
	paymentsAPI.Use(authMiddleware.Authenticate)
	paymentsAPI.HandleFunc("/my", paymentHandler.MyPayments).Methods("GET")
	paymentsAPI.HandleFunc("/{id}", paymentHandler.GetPayment).Methods("GET")
	paymentsAPI.HandleFunc("/{id}/receipt", paymentHandler.Receipt).Methods("GET")

	// Health and metrics
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
