package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
)

const MaxRequestBodySize = 1 << 16 // 64 KB; purchase requests are tiny

// PurchaseProcessor is the narrow interface the handler needs from the app
// layer. It makes testing easier by allowing mocks.
type PurchaseProcessor interface {
	Purchase(ctx context.Context, phoneNumber, packageCode string) *domain.PurchaseResult
}

type PurchaseHandler struct {
	appService PurchaseProcessor
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewPurchaseHandler(appService PurchaseProcessor, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		appService: appService,
		validate:   validator.New(),
		logger:     logger.With("component", "purchase_handler"),
	}
}

type purchaseRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=8,max=20"`
	PackageCode string `json:"package_code" validate:"required,max=64"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandlePurchase processes POST /purchases. The app layer always returns a
// terminal PurchaseResult; only malformed requests are rejected here.
func (h *PurchaseHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode purchase request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			logger.WarnContext(ctx, "Purchase request validation failed", "error", validationErrs.Error())
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "phone_number and package_code are required"})
		return
	}

	result := h.appService.Purchase(ctx, req.PhoneNumber, req.PackageCode)

	logger.InfoContext(ctx, "Purchase request processed",
		"phone_number", req.PhoneNumber,
		"package_code", req.PackageCode,
		"status", result.Status,
		"message", result.Message,
	)

	writeJSON(w, statusCodeFor(result), result)
}

// statusCodeFor maps the terminal business outcome onto an HTTP status. The
// result body carries the authoritative message either way.
func statusCodeFor(result *domain.PurchaseResult) int {
	if result.Status == domain.PurchaseStatusSuccess {
		return http.StatusOK
	}
	switch result.Message {
	case domain.MsgInvalidPhoneNumber:
		return http.StatusBadRequest
	case domain.MsgPackageNotAvailable:
		return http.StatusNotFound
	case domain.MsgInsufficientBalance, domain.MsgPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
