package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"library-backend/internal/gateway"
	"library-backend/internal/middleware"
	"library-backend/internal/services"

	"github.com/gorilla/mux"
)

type PaymentHandler struct {
	settlementService *services.SettlementService
	receiptService    *services.ReceiptService
	gateway           *gateway.RazorpayGateway
}

func NewPaymentHandler(
	settlementService *services.SettlementService,
	receiptService *services.ReceiptService,
	gw *gateway.RazorpayGateway,
) *PaymentHandler {
	return &PaymentHandler{
		settlementService: settlementService,
		receiptService:    receiptService,
		gateway:           gw,
	}
}

// Checkout opens a gateway checkout session for a loan's outstanding charge.
// POST /api/loans/{id}/checkout
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
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

	resp, err := h.settlementService.InitiateCheckout(r.Context(), loanID, userID, role)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// CallbackSuccess is the browser redirect target after a completed gateway
// checkout. Unauthenticated by necessity; the capture itself is idempotent,
// so a forged or replayed hit can at worst confirm a charge the gateway
// already collected.
// GET /api/payments/callback/success?loan_id=N
func (h *PaymentHandler) CallbackSuccess(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.Atoi(r.URL.Query().Get("loan_id"))
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	payment, err := h.settlementService.ConfirmSuccess(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Payment confirmed",
		"reference": payment.Reference,
		"total":     payment.Total,
	})
}

// CallbackCancel is the redirect target for an abandoned checkout.
// GET /api/payments/callback/cancel?loan_id=N
func (h *PaymentHandler) CallbackCancel(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.Atoi(r.URL.Query().Get("loan_id"))
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	if err := h.settlementService.ConfirmCancel(r.Context(), loanID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Checkout cancelled"})
}

// Webhook receives Razorpay event notifications. The signature is verified
// against the raw body before anything is parsed. Only payment_link.paid is
// acted on; every other event is acknowledged and dropped.
// POST /api/payments/webhook
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if !h.gateway.VerifyWebhookSignature(body, signature) {
		log.Printf("[Webhook] signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event struct {
		Event   string `json:"event"`
		Payload struct {
			PaymentLink struct {
				Entity struct {
					Notes map[string]string `json:"notes"`
				} `json:"entity"`
			} `json:"payment_link"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if event.Event != "payment_link.paid" {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	loanID, err := strconv.Atoi(event.Payload.PaymentLink.Entity.Notes["loan_id"])
	if err != nil {
		log.Printf("[Webhook] payment_link.paid without usable loan_id note")
		http.Error(w, "Missing loan_id note", http.StatusBadRequest)
		return
	}

	if _, err := h.settlementService.ConfirmSuccess(r.Context(), loanID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// GetPayment returns one settlement record.
// GET /api/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	paymentID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	payment, err := h.settlementService.GetPayment(r.Context(), paymentID, userID, role)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

// MyPayments lists the authenticated member's settlement history.
// GET /api/payments/my
func (h *PaymentHandler) MyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payments, err := h.settlementService.ListUserPayments(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

// Receipt streams the PDF receipt for a payment.
// GET /api/payments/{id}/receipt
func (h *PaymentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	paymentID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}

	data, err := h.settlementService.ReceiptData(r.Context(), paymentID, userID, role)
	if err != nil {
		respondError(w, err)
		return
	}

	pdf, err := h.receiptService.Render(data)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=receipt-%s.pdf", data.Payment.Reference))
	w.Write(pdf)
}
