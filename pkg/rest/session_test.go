package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/coinbase-advanced/pkg/auth"
)

var testCreds = auth.Credentials{Key: "test-key", Secret: "test-secret"}

func newTestSession(t *testing.T, baseURL string, opts Options) *Session {
	t.Helper()

	opts.BaseURL = baseURL
	if opts.Backoff == 0 {
		opts.Backoff = 5 * time.Millisecond
	}
	session, err := NewSession(testCreds, opts)
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session
}

func TestNewSession(t *testing.T) {
	t.Run("InvalidCredentials", func(t *testing.T) {
		_, err := NewSession(auth.Credentials{}, Options{})
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("Defaults", func(t *testing.T) {
		session, err := NewSession(testCreds, Options{})
		require.NoError(t, err)
		defer session.Close()

		assert.Equal(t, DefaultBaseURL, session.opts.BaseURL)
		assert.Equal(t, uint(3), session.opts.Retries)
		assert.Equal(t, time.Second, session.opts.Backoff)
		assert.Equal(t, 30*time.Second, session.opts.Timeout)
		assert.Nil(t, session.cache)
	})
}

func TestSessionSigning(t *testing.T) {
	var captured http.Header
	var capturedPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		capturedPath = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	session := newTestSession(t, server.URL, Options{})

	_, err := session.Get(context.Background(), "/accounts", url.Values{"limit": {"10"}})
	require.NoError(t, err)

	assert.Equal(t, "test-key", captured.Get(auth.HeaderAccessKey))
	assert.Equal(t, "application/json", captured.Get("Accept"))
	assert.Equal(t, "application/json", captured.Get("Content-Type"))

	// The signature must cover the timestamp, method and bare path, and
	// must exclude the query string.
	timestamp := captured.Get(auth.HeaderAccessTimestamp)
	require.NotEmpty(t, timestamp)
	mac := hmac.New(sha256.New, []byte(testCreds.Secret))
	mac.Write([]byte(timestamp + "GET" + capturedPath))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), captured.Get(auth.HeaderAccessSign))
}

func TestSessionPostSignsBody(t *testing.T) {
	var captured http.Header
	var capturedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		capturedBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	session := newTestSession(t, server.URL, Options{})

	_, err := session.Post(context.Background(), "/orders", map[string]string{"side": "BUY"})
	require.NoError(t, err)

	timestamp := captured.Get(auth.HeaderAccessTimestamp)
	mac := hmac.New(sha256.New, []byte(testCreds.Secret))
	mac.Write([]byte(timestamp + "POST" + "/orders"))
	mac.Write(capturedBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), captured.Get(auth.HeaderAccessSign))
}

func TestSessionRetriesTransientFailures(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	backoff := 10 * time.Millisecond
	session := newTestSession(t, server.URL, Options{Retries: 3, Backoff: backoff})

	start := time.Now()
	body, err := session.Get(context.Background(), "/accounts", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// Two retries with exponential backoff: 10ms then 20ms.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestSessionFreshSignaturePerAttempt(t *testing.T) {
	var mu sync.Mutex
	var timestamps []string
	var signatures []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		timestamps = append(timestamps, r.Header.Get(auth.HeaderAccessTimestamp))
		signatures = append(signatures, r.Header.Get(auth.HeaderAccessSign))
		first := len(timestamps) < 2
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	session := newTestSession(t, server.URL, Options{Retries: 2, Backoff: 1100 * time.Millisecond})

	_, err := session.Get(context.Background(), "/accounts", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, timestamps, 2)

	// The backoff exceeds one second, so the second attempt must have
	// been re-signed with a later timestamp.
	assert.NotEqual(t, timestamps[0], timestamps[1])
	assert.NotEqual(t, signatures[0], signatures[1])
}

func TestSessionErrorTranslation(t *testing.T) {
	t.Run("ClientErrorWithMessage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "not found."}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{})

		_, err := session.Get(context.Background(), "/accounts/missing", nil)
		require.Error(t, err)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Status)
		assert.Equal(t, SideClient, httpErr.Side)
		assert.Equal(t, "not found", httpErr.Message)
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message": "bad request"}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{Retries: 3})

		_, err := session.Get(context.Background(), "/orders", nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ServerErrorAfterExhaustedRetries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message": "upstream unavailable!"}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{Retries: 2})

		_, err := session.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadGateway, httpErr.Status)
		assert.Equal(t, SideServer, httpErr.Side)
		assert.Equal(t, "upstream unavailable", httpErr.Message)
	})

	t.Run("NonJSONBodyFallsBackToStatusText", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("<html>denied</html>"))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{})

		_, err := session.Get(context.Background(), "/accounts", nil)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Status)
		assert.Equal(t, "Forbidden", httpErr.Message)
	})

	t.Run("TransportErrorAfterExhaustedRetries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		baseURL := server.URL
		server.Close()

		session := newTestSession(t, baseURL, Options{Retries: 1})

		_, err := session.Get(context.Background(), "/accounts", nil)
		require.Error(t, err)

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, uint(2), transportErr.Attempts)
	})
}

func TestSessionCaching(t *testing.T) {
	t.Run("HitWithinTTL", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Write([]byte(`{"n":1}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{EnableCache: true, CacheTTL: time.Minute})

		first, err := session.Get(context.Background(), "/products", nil)
		require.NoError(t, err)
		second, err := session.Get(context.Background(), "/products", nil)
		require.NoError(t, err)

		assert.Equal(t, string(first), string(second))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ExpiryForcesRefetch", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Write([]byte(`{"n":1}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{EnableCache: true, CacheTTL: time.Minute})

		now := time.Unix(1700000000, 0)
		session.cache.now = func() time.Time { return now }

		_, err := session.Get(context.Background(), "/products", nil)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = session.Get(context.Background(), "/products", nil)
		require.NoError(t, err)

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("DistinctURLsNotShared", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{EnableCache: true})

		_, err := session.Get(context.Background(), "/products", nil)
		require.NoError(t, err)
		_, err = session.Get(context.Background(), "/products", url.Values{"limit": {"5"}})
		require.NoError(t, err)

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("PostNeverCached", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		session := newTestSession(t, server.URL, Options{EnableCache: true})

		for i := 0; i < 2; i++ {
			_, err := session.Post(context.Background(), "/orders", map[string]string{"side": "BUY"})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestSessionDecodedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[{"uuid":"a-1"}],"has_next":false}`))
	}))
	defer server.Close()

	session := newTestSession(t, server.URL, Options{})

	body, err := session.Get(context.Background(), "/accounts", nil)
	require.NoError(t, err)

	var decoded struct {
		Accounts []struct {
			UUID string `json:"uuid"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.Accounts, 1)
	assert.Equal(t, "a-1", decoded.Accounts[0].UUID)
}
