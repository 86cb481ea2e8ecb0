package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/domain/payment"
	"github.com/xenking/greencart/internal/oas"
)

// StripeWebhook verifies and applies a payment gateway event. It reads the
// raw body since the signature covers the exact bytes.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		lg.Warn("Read webhook body", zap.Error(err))
		webhookError(w, http.StatusBadRequest, err)
		return
	}

	event, err := h.verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		lg.Warn("Webhook rejected", zap.Error(err))
		h.metrics.webhookEvent(r.Context(), "", "rejected")
		webhookError(w, http.StatusBadRequest, err)
		return
	}

	lg = lg.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	outcome, err := h.events.Process(zctx.Base(r.Context(), lg), event)
	if err != nil {
		lg.Error("Process webhook event", zap.Error(err))
		h.metrics.webhookEvent(r.Context(), event.Type, "error")
		webhookError(w, http.StatusInternalServerError, err)
		return
	}
	h.metrics.webhookEvent(r.Context(), event.Type, string(outcome))
	lg.Info("Webhook processed", zap.String("outcome", string(outcome)))
	ok(w, &oas.WebhookResponse{Received: true})
}

func webhookError(w http.ResponseWriter, code int, err error) {
	msg := err.Error()
	if errors.Is(err, payment.ErrInvalidSignature) {
		msg = payment.ErrInvalidSignature.Error()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, "Webhook Error: "+msg)
}
