package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
)

type MockPurchaseProcessor struct {
	mock.Mock
}

func (m *MockPurchaseProcessor) Purchase(ctx context.Context, phoneNumber, packageCode string) *domain.PurchaseResult {
	args := m.Called(ctx, phoneNumber, packageCode)
	return args.Get(0).(*domain.PurchaseResult)
}

func setupHandlerTest(t *testing.T) (*PurchaseHandler, *MockPurchaseProcessor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockApp := new(MockPurchaseProcessor)
	return NewPurchaseHandler(mockApp, logger), mockApp
}

func postPurchase(handler *PurchaseHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/purchases", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.HandlePurchase(rr, req)
	return rr
}

func TestHandlePurchase_Success(t *testing.T) {
	handler, mockApp := setupHandlerTest(t)
	remaining := decimal.NewFromInt(5000)
	mockApp.On("Purchase", mock.Anything, "081234561234", "DATA5GB").Return(&domain.PurchaseResult{
		Status:           domain.PurchaseStatusSuccess,
		Message:          domain.MsgPackageActivated,
		RemainingBalance: &remaining,
		PackageDetails:   &domain.Package{Code: "DATA5GB", Price: decimal.NewFromInt(45000)},
	})

	rr := postPurchase(handler, `{"phone_number":"081234561234","package_code":"DATA5GB"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result domain.PurchaseResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, domain.PurchaseStatusSuccess, result.Status)
	require.NotNil(t, result.RemainingBalance)
	assert.True(t, result.RemainingBalance.Equal(decimal.NewFromInt(5000)))
	require.NotNil(t, result.PackageDetails)
	assert.Equal(t, "DATA5GB", result.PackageDetails.Code)
	mockApp.AssertExpectations(t)
}

func TestHandlePurchase_BusinessFailureStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		message    string
		wantStatus int
	}{
		{"invalid customer", domain.MsgInvalidPhoneNumber, http.StatusBadRequest},
		{"package unavailable", domain.MsgPackageNotAvailable, http.StatusNotFound},
		{"insufficient balance", domain.MsgInsufficientBalance, http.StatusPaymentRequired},
		{"payment failed", domain.MsgPaymentFailed, http.StatusPaymentRequired},
		{"activation failed", domain.MsgActivationFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, mockApp := setupHandlerTest(t)
			mockApp.On("Purchase", mock.Anything, "081234561234", "DATA5GB").
				Return(domain.FailedPurchase(tc.message))

			rr := postPurchase(handler, `{"phone_number":"081234561234","package_code":"DATA5GB"}`)

			assert.Equal(t, tc.wantStatus, rr.Code)
			var result domain.PurchaseResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
			assert.Equal(t, domain.PurchaseStatusFailed, result.Status)
			assert.Equal(t, tc.message, result.Message)
			assert.Nil(t, result.RemainingBalance)
		})
	}
}

func TestHandlePurchase_MalformedBody(t *testing.T) {
	handler, mockApp := setupHandlerTest(t)

	rr := postPurchase(handler, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockApp.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePurchase_MissingFields(t *testing.T) {
	handler, mockApp := setupHandlerTest(t)

	rr := postPurchase(handler, `{"phone_number":"081234561234"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockApp.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePurchase_PhoneNumberTooShort(t *testing.T) {
	handler, mockApp := setupHandlerTest(t)

	rr := postPurchase(handler, `{"phone_number":"0812","package_code":"DATA5GB"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockApp.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything)
}
