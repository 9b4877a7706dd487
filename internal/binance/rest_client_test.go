package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"ma-crossover-backtest/internal/config"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:  resty.New().SetBaseURL(server.URL),
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		backoff: time.Millisecond,
	}

	return rc, server
}

// klineRows renders n daily klines starting at start, closing at base+i.
func klineRows(start time.Time, n int, base float64) string {
	body := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		open := start.AddDate(0, 0, i).UnixMilli()
		body += fmt.Sprintf(`[%d,"1.0","2.0","0.5","%.2f","10.0",%d,"0",1,"0","0","0"]`, open, base+float64(i), open+86399999)
	}
	return body + "]"
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		expectedTime := time.Now().UnixMilli()

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/time", r.URL.Path)
			writeJSON(w, http.StatusOK, fmt.Sprintf(`{"serverTime": %d}`, expectedTime))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("ClientError", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusBadRequest, `{"code": -1100, "msg": "Illegal characters"}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime(context.Background())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Contains(t, err.Error(), "request failed")
		assert.Equal(t, int64(0), serverTime)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
	})

	t.Run("ServerErrorIsRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				writeJSON(w, http.StatusInternalServerError, `{"code": -1001, "msg": "Internal error"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"serverTime": 42}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, int64(42), serverTime)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("GivesUpAfterMaxRetries", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetServerTime(context.Background())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})
}

func TestGetDailyCloses(t *testing.T) {
	t.Run("SinglePage", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/klines", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "BTCUSDT", q.Get("symbol"))
			assert.Equal(t, IntervalDaily, q.Get("interval"))
			assert.Equal(t, strconv.FormatInt(day0.UnixMilli(), 10), q.Get("startTime"))
			assert.Equal(t, "3", q.Get("limit"))
			writeJSON(w, http.StatusOK, klineRows(day0, 3, 100))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		klines, err := rc.GetDailyCloses(context.Background(), "BTCUSDT", day0, 3)

		require.NoError(t, err)
		require.Len(t, klines, 3)
		assert.Equal(t, Kline{OpenTime: day0, Close: 100}, klines[0])
		assert.Equal(t, Kline{OpenTime: day0.AddDate(0, 0, 2), Close: 102}, klines[2])
	})

	t.Run("Paginates", func(t *testing.T) {
		var pages int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&pages, 1)
			startMs, err := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
			assert.NoError(t, err)
			limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
			assert.NoError(t, err)
			start := time.UnixMilli(startMs).UTC()
			offset := int(start.Sub(day0).Hours() / 24)
			writeJSON(w, http.StatusOK, klineRows(start, limit, float64(offset)))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		klines, err := rc.GetDailyCloses(context.Background(), "BTCUSDT", day0, 1500)

		require.NoError(t, err)
		require.Len(t, klines, 1500)
		assert.Equal(t, int32(2), atomic.LoadInt32(&pages))
		for i, k := range klines {
			assert.Equal(t, day0.AddDate(0, 0, i), k.OpenTime)
			assert.Equal(t, float64(i), k.Close)
		}
	})

	t.Run("StopsWhenHistoryEnds", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, klineRows(day0, 2, 50))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		klines, err := rc.GetDailyCloses(context.Background(), "BTCUSDT", day0, 10)

		require.NoError(t, err)
		assert.Len(t, klines, 2)
	})

	t.Run("MalformedRow", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `[[1672531200000,"1.0","2.0","0.5","not-a-number"]]`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetDailyCloses(context.Background(), "BTCUSDT", day0, 1)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid close")
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, `{}`)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()
		rc.backoff = time.Hour

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := rc.GetDailyCloses(ctx, "BTCUSDT", day0, 1)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestParseKlines(t *testing.T) {
	testCases := []struct {
		name        string
		raw         [][]any
		expected    []Kline
		expectError bool
	}{
		{name: "Empty", raw: nil, expected: []Kline{}},
		{
			name:     "Decimal close",
			raw:      [][]any{{float64(day0.UnixMilli()), "1", "1", "1", "16625.08000000"}},
			expected: []Kline{{OpenTime: day0, Close: 16625.08}},
		},
		{name: "Too short", raw: [][]any{{float64(day0.UnixMilli()), "1"}}, expectError: true},
		{name: "Open time not numeric", raw: [][]any{{"x", "1", "1", "1", "1"}}, expectError: true},
		{name: "Close not a string", raw: [][]any{{float64(0), "1", "1", "1", 1.5}}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			klines, err := parseKlines(tc.raw)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, klines)
		})
	}
}

func TestNewRestClient(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      config.Binance
		expected string
	}{
		{name: "Production", cfg: config.Binance{RateLimit: 20, RateLimitBurst: 5}, expected: baseURL},
		{name: "Testnet", cfg: config.Binance{Testnet: true, RateLimit: 20, RateLimitBurst: 5}, expected: testnetBaseURL},
		{name: "Custom", cfg: config.Binance{BaseURL: "http://localhost:9999", Testnet: true}, expected: "http://localhost:9999"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rc := NewRestClient(&tc.cfg, zap.NewNop())
			require.NotNil(t, rc)
			assert.Equal(t, tc.expected, rc.client.BaseURL)
			assert.Equal(t, time.Second, rc.backoff)
		})
	}
}
