package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carepro/verification-service/internal/app"
	"github.com/carepro/verification-service/internal/store"
	"github.com/carepro/verification-service/pkg/backendclient"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testWebhookSecret = "sk_test_dojah_secret"
	testJWTSecret     = "carepro-test-jwt-secret"
)

const scenarioPayload = `{"status":true,"verification_status":"Completed","reference_id":"DJ-ABC123","data":{"government_data":{"data":{"bvn":{"entity":{"bvn":"123","first_name":"Jane ","last_name":"Doe"}}}}}}`

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type apiFixture struct {
	router        http.Handler
	store         *store.MemoryStore
	service       *app.Service
	clock         *testClock
	backendStatus atomic.Int32
	backendCalls  atomic.Int32

	mu           sync.Mutex
	backendAuth  []string
	backendPaths []string
	backendBody  []map[string]any
}

func newAPIFixture(t *testing.T, opts app.Options) *apiFixture {
	t.Helper()
	fx := &apiFixture{clock: &testClock{now: time.Now()}}
	fx.backendStatus.Store(http.StatusOK)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fx.backendCalls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		fx.mu.Lock()
		fx.backendAuth = append(fx.backendAuth, r.Header.Get("Authorization"))
		fx.backendPaths = append(fx.backendPaths, r.Method+" "+r.URL.Path)
		fx.backendBody = append(fx.backendBody, body)
		fx.mu.Unlock()

		status := int(fx.backendStatus.Load())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"message":"Service temporarily unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Verification updated"}`))
	}))
	t.Cleanup(backend.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx.store = store.NewMemoryStore(store.WithClock(fx.clock.Now))
	client := backendclient.NewClient(backend.URL, 2*time.Second)
	forwarder := app.NewForwarder(fx.store, app.NewNormalizer(""), client, nil, logger, false)
	fx.service = app.NewService(fx.store, forwarder, app.NewSweeper(fx.store, logger, ""), nil, logger, opts)

	fx.router = NewRouter(
		NewWebhookHandler(fx.service, NewSignatureVerifier(testWebhookSecret), logger),
		NewVerificationHandler(fx.service, logger),
		NewAdminHandler(fx.service, logger),
		RouterConfig{
			Auth:       AuthConfig{Secret: testJWTSecret},
			AdminRoles: []string{"Admin"},
		},
	)
	return fx
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func (fx *apiFixture) postWebhook(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	return fx.do(t, http.MethodPost, "/webhooks/dojah", "", []byte(body), map[string]string{
		SignatureHeader: signBody(testWebhookSecret, []byte(body)),
		"Content-Type":  "application/json",
	})
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func hexHMAC256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func base64HMAC256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signToken(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if len(roles) > 0 {
		claims["role"] = roles[0]
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not a JSON envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}
