package redeem

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/coupon-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coupon-service/internal/metrics"
	"github.com/magabrotheeeer/coupon-service/internal/models"
	"github.com/magabrotheeeer/coupon-service/internal/services/coupon"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CheckEligibility(ctx context.Context, user *models.User) (coupon.Eligibility, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(coupon.Eligibility), args.Error(1)
}

func (m *MockService) Redeem(ctx context.Context, code string, user *models.User) (models.Redemption, error) {
	args := m.Called(ctx, code, user)
	return args.Get(0).(models.Redemption), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

type body struct {
	Status   string         `json:"status"`
	Error    string         `json:"error"`
	Message  string         `json:"message"`
	Redirect string         `json:"redirect"`
	Data     map[string]any `json:"data"`
}

func TestRedeemHandler(t *testing.T) {
	user := &models.User{UID: "uid-1", Email: "bob@example.com", Role: "user"}
	endAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	eligible := coupon.Eligibility{Eligible: true}

	tests := []struct {
		name           string
		body           string
		withUser       bool
		setupMock      func(*MockService)
		expectedStatus int
		check          func(t *testing.T, b body)
	}{
		{
			name:     "пользователь с другой подпиской",
			body:     `{"code":"SPRING"}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).
					Return(coupon.Eligibility{Blocked: []coupon.Gate{coupon.GateApple}}, nil).Once()
			},
			expectedStatus: http.StatusConflict,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "You already have another subscription.", b.Error)
				assert.Equal(t, "/dashboard", b.Redirect)
			},
		},
		{
			name:     "некорректный JSON",
			body:     `{"code":`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(eligible, nil).Once()
			},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "invalid request body", b.Error)
			},
		},
		{
			name:     "пустой код",
			body:     `{"code":"   "}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(eligible, nil).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "field Code is a required field", b.Error)
			},
		},
		{
			name:     "неизвестный или использованный код",
			body:     `{"code":"OLD"}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(eligible, nil).Once()
				m.On("Redeem", mock.Anything, "OLD", user).
					Return(models.Redemption{Outcome: models.OutcomeInvalid}, nil).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "Code *OLD* expired or invalid", b.Error)
				assert.Empty(t, b.Redirect)
			},
		},
		{
			name:     "новая подписка",
			body:     `{"code":"SPRING"}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(eligible, nil).Once()
				m.On("Redeem", mock.Anything, "SPRING", user).
					Return(models.Redemption{Outcome: models.OutcomeSuccess, EndAt: endAt}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "OK", b.Status)
				assert.Equal(t, "Your account has been upgraded to Premium, thanks for your support!", b.Message)
				assert.Equal(t, "/dashboard", b.Redirect)
				assert.Equal(t, "2026-05-01T00:00:00Z", b.Data["end_at"])
			},
		},
		{
			name:     "продление подписки",
			body:     `{"code":"SPRING"}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(eligible, nil).Once()
				m.On("Redeem", mock.Anything, "SPRING", user).
					Return(models.Redemption{Outcome: models.OutcomeSuccess, EndAt: endAt, WasExtension: true}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "Your current subscription is extended to 2026-05-01", b.Message)
				assert.Equal(t, "/dashboard", b.Redirect)
			},
		},
		{
			name:     "ошибка хранилища при проверке",
			body:     `{"code":"SPRING"}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(coupon.Eligibility{}, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "internal service error", b.Error)
			},
		},
		{
			name:     "ошибка хранилища при активации",
			body:     `{"code":"SPRING"}`,
			withUser: true,
			setupMock: func(m *MockService) {
				m.On("CheckEligibility", mock.Anything, user).Return(eligible, nil).Once()
				m.On("Redeem", mock.Anything, "SPRING", user).
					Return(models.Redemption{}, errors.New("tx aborted")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, b body) {
				assert.Equal(t, "internal service error", b.Error)
			},
		},
		{
			name:           "нет пользователя в контексте",
			body:           `{"code":"SPRING"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/coupon", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.withUser {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), user))
			}
			w := httptest.NewRecorder()

			New(newNoopLogger(), mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.check != nil {
				var b body
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
				tt.check(t, b)
			}
			mockService.AssertExpectations(t)
			if tt.expectedStatus == http.StatusConflict {
				mockService.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRedeemHandler_CountsBlockedGates(t *testing.T) {
	user := &models.User{UID: "uid-1", Email: "bob@example.com", Role: "user"}
	apple := metrics.IneligibleRequests.WithLabelValues(string(coupon.GateApple))
	coinbase := metrics.IneligibleRequests.WithLabelValues(string(coupon.GateCoinbase))
	appleBefore := testutil.ToFloat64(apple)
	coinbaseBefore := testutil.ToFloat64(coinbase)

	mockService := new(MockService)
	mockService.On("CheckEligibility", mock.Anything, user).
		Return(coupon.Eligibility{Blocked: []coupon.Gate{coupon.GateApple, coupon.GateCoinbase}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/coupon", strings.NewReader(`{"code":"SPRING"}`))
	req = req.WithContext(middlewarectx.WithUser(req.Context(), user))
	w := httptest.NewRecorder()
	New(newNoopLogger(), mockService).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appleBefore+1, testutil.ToFloat64(apple))
	assert.Equal(t, coinbaseBefore+1, testutil.ToFloat64(coinbase))
}
