package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campus-rag/internal/middleware"
	"campus-rag/internal/models"
	"campus-rag/internal/repositories"
	"campus-rag/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAsker struct {
	mock.Mock
}

func (m *MockAsker) Ask(ctx context.Context, userID, rawQuery string) (*services.AskResult, error) {
	args := m.Called(ctx, userID, rawQuery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AskResult), args.Error(1)
}

func testLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "[TEST] ", log.LstdFlags)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	args := m.Called(ctx, identity)
	return args.Bool(0), args.Error(1)
}

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

func newValidator() QueryValidator {
	return services.NewQueryValidator(services.DefaultMinQueryLength, services.DefaultMaxQueryLength)
}

func postAsk(h http.Handler, body string, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestAskHandler_Success(t *testing.T) {
	asker := new(MockAsker)
	asker.On("Ask", mock.Anything, "user-7", "Kapan pendaftaran dibuka?").
		Return(&services.AskResult{Answer: "Pendaftaran dibuka Mei."}, nil)

	h := http.HandlerFunc(NewAskHandler(asker, newValidator(), nil, testLogger()).Ask)
	rec := postAsk(h, `{"query":"Kapan pendaftaran dibuka?"}`, "user-7")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get(middleware.CacheHitHeader))
	assert.JSONEq(t, `{"answer":"Pendaftaran dibuka Mei."}`, rec.Body.String())
	asker.AssertExpectations(t)
}

func TestAskHandler_CachedAnswer(t *testing.T) {
	asker := new(MockAsker)
	asker.On("Ask", mock.Anything, mock.Anything, mock.Anything).
		Return(&services.AskResult{Answer: "Mei.", Cached: true}, nil)

	identity := middleware.Identity(middleware.NewIdentityCodec(testHashKey))
	rec := postAsk(identity(http.HandlerFunc(NewAskHandler(asker, newValidator(), nil, testLogger()).Ask)), `{"query":"Kapan daftar?"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(middleware.CacheHitHeader))
	assert.JSONEq(t, `{"answer":"Mei.","cached":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Result().Cookies(), "anonymous caller gets a user_id cookie")
}

func TestAskHandler_InvalidBody(t *testing.T) {
	asker := new(MockAsker)
	h := http.HandlerFunc(NewAskHandler(asker, newValidator(), nil, testLogger()).Ask)

	for _, body := range []string{`not json`, `{"query":`, strings.Repeat("a", maxAskBodyBytes+10)} {
		rec := postAsk(h, body, "u")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidBody, decodeError(t, rec))
	}
	asker.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
}

func TestAskHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        &services.ValidationError{Message: "Pertanyaan minimal 3 karakter."},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Pertanyaan minimal 3 karakter.",
		},
		{
			name:       "runtime unavailable",
			err:        fmt.Errorf("%w: chroma down", services.ErrRuntimeUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    msgServiceUnavailable,
		},
		{
			name:       "generation unavailable",
			err:        fmt.Errorf("answer: %w", services.ErrGenerationUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    msgServiceUnavailable,
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    msgServiceUnavailable,
		},
		{
			name:       "unexpected",
			err:        errors.New("nil pointer somewhere with secret detail"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    msgInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := new(MockAsker)
			asker.On("Ask", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := postAsk(http.HandlerFunc(NewAskHandler(asker, nil, nil, testLogger()).Ask), `{"query":"Apa itu UIN?"}`, "u")

			assert.Equal(t, tt.wantStatus, rec.Code)
			msg := decodeError(t, rec)
			assert.Equal(t, tt.wantMsg, msg)
			assert.NotContains(t, msg, "secret")
		})
	}
}

func TestAskHandler_ValidatesBeforeRateLimit(t *testing.T) {
	asker := new(MockAsker)
	limiter := new(MockRateLimiter)
	h := http.HandlerFunc(NewAskHandler(asker, newValidator(), limiter, testLogger()).Ask)

	for _, body := range []string{`{"query":""}`, `{"query":"hi"}`, `{"query":"   "}`} {
		rec := postAsk(h, body, "u")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
	asker.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
}

func TestAskHandler_RateLimit(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		asker := new(MockAsker)
		limiter := new(MockRateLimiter)
		limiter.On("Allow", mock.Anything, "192.0.2.1").Return(false, nil)

		rec := postAsk(http.HandlerFunc(NewAskHandler(asker, newValidator(), limiter, testLogger()).Ask), `{"query":"Apa itu UIN?"}`, "u")

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, msgRateLimited, decodeError(t, rec))
		asker.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		asker := new(MockAsker)
		asker.On("Ask", mock.Anything, "u", "Apa itu UIN?").Return(&services.AskResult{Answer: "Kampus."}, nil)
		limiter := new(MockRateLimiter)
		limiter.On("Allow", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

		rec := postAsk(http.HandlerFunc(NewAskHandler(asker, newValidator(), limiter, testLogger()).Ask), `{"query":"Apa itu UIN?"}`, "u")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rotating cookies from one address share a budget", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		asker := new(MockAsker)
		asker.On("Ask", mock.Anything, mock.Anything, mock.Anything).Return(&services.AskResult{Answer: "Kampus."}, nil)
		limiter := repositories.NewRedisRateLimiter(client, 5, time.Minute)
		identity := middleware.Identity(middleware.NewIdentityCodec(testHashKey))
		h := identity(http.HandlerFunc(NewAskHandler(asker, newValidator(), limiter, testLogger()).Ask))

		codes := make([]int, 0, 8)
		for i := 0; i < 8; i++ {
			req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"query":"Apa itu UIN?"}`))
			req.RemoteAddr = fmt.Sprintf("198.51.100.9:%d", 40000+i)
			req.AddCookie(&http.Cookie{Name: middleware.UserIDCookie, Value: fmt.Sprintf("forged-%d", i)})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}

		assert.Equal(t, []int{200, 200, 200, 200, 200, 429, 429, 429}, codes)

		req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"query":"Apa itu UIN?"}`))
		req.RemoteAddr = "198.51.100.10:40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "other addresses keep their own budget")
	})
}
