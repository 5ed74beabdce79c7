package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"library-backend/internal/middleware"
	"library-backend/internal/models"
	"library-backend/internal/services"

	"github.com/gorilla/mux"
)

type LoanHandler struct {
	loanService       *services.LoanService
	settlementService *services.SettlementService
}

func NewLoanHandler(loanService *services.LoanService, settlementService *services.SettlementService) *LoanHandler {
	return &LoanHandler{
		loanService:       loanService,
		settlementService: settlementService,
	}
}

// Borrow checks out a copy of a book for the authenticated member.
// With instant settlement a checkout session is opened right away and its
// URL returned alongside the loan.
// POST /api/books/{id}/borrow
func (h *LoanHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	bookID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}

	var req models.BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loan, err := h.loanService.Borrow(r.Context(), userID, bookID, req.PaymentOption)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := &models.BorrowResponse{Loan: loan}
	if req.PaymentOption == models.PaymentInstant {
		role, _ := middleware.GetRoleFromContext(r.Context())
		checkout, err := h.settlementService.InitiateCheckout(r.Context(), loan.ID, userID, role)
		if err != nil {
			// The loan stands; the member settles later via checkout.
			log.Printf("[Loan] instant checkout for loan %d failed, falling back to deferred: %v", loan.ID, err)
		} else {
			resp.CheckoutURL = checkout.CheckoutURL
		}
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Return finishes a loan. An unpaid loan answers 402 with a checkout URL so
// the client can settle first; the return then completes on confirmation.
// POST /api/loans/{id}/return
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	loanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	loan, err := h.loanService.Return(r.Context(), loanID, userID, role)
	if errors.Is(err, models.ErrPaymentRequired) {
		checkout, cerr := h.settlementService.InitiateCheckout(r.Context(), loanID, userID, role)
		if cerr != nil {
			respondError(w, cerr)
			return
		}
		respondJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":        "payment required before return",
			"checkout_url": checkout.CheckoutURL,
			"amount":       checkout.Amount,
			"currency":     checkout.Currency,
		})
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

// GetLoan returns one loan with its live fine.
// GET /api/loans/{id}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	loanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	loan, err := h.loanService.Get(r.Context(), loanID, userID, role)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.loanService.View(loan))
}

// MyLoans lists the authenticated member's loans.
// GET /api/loans/my
func (h *LoanHandler) MyLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loans, err := h.loanService.ListUserLoans(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loans)
}

// ListLoans lists every loan
// GET /api/loans (staff)
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loanService.ListAllLoans(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loans)
}

// UpdateLoan applies an administrative override to a loan
// PUT /api/loans/{id} (admin)
func (h *LoanHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	var req models.AdminUpdateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loan, err := h.loanService.AdminUpdate(r.Context(), loanID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

// DeleteLoan removes a loan record
// DELETE /api/loans/{id} (admin)
func (h *LoanHandler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	if err := h.loanService.Delete(r.Context(), loanID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Loan deleted"})
}
