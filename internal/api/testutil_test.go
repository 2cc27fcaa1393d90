package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/feed"
	"github.com/lalith-99/familyhub/internal/household"
	"github.com/lalith-99/familyhub/internal/identity"
	"github.com/lalith-99/familyhub/internal/membership"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	engine *gin.Engine
	store  *docstore.Memory
	bus    *feed.Local
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	bus := feed.NewLocal()
	store := docstore.NewMemory(docstore.WithPublisher(bus))

	users := repository.NewUserStore(store)
	provider := identity.NewProvider(
		store,
		users,
		repository.NewCredentialStore(store),
		identity.NewMemoryRevoker(),
		identity.Config{Secret: "test-secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		logger,
	)
	families := membership.NewService(store, users, repository.NewFamilyStore(store), logger)
	house := household.NewService(
		store,
		users,
		repository.NewTaskStore(store),
		repository.NewInventoryStore(store),
		repository.NewShoppingStore(store),
		logger,
	)

	router := Router{
		Auth:      NewAuthHandler(provider, logger),
		Users:     NewUserHandler(users, logger),
		Families:  NewFamilyHandler(families, logger),
		Household: NewHouseholdHandler(house, logger),
		Live:      NewLiveHandler(store, bus, families, provider, logger),
		Verifier:  provider,
		Logger:    logger,
	}
	return &testEnv{engine: router.Engine(), store: store, bus: bus}
}

func performRequest(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeJSONMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func decodeJSONList(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assertStatus(t, w, status)
	body := decodeJSONMap(t, w)
	if body["code"] != code {
		t.Fatalf("code = %v, want %s", body["code"], code)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Fatal("error message is empty")
	}
}

// signup registers an account and returns its token and uid.
func signup(t *testing.T, env *testEnv, email, name string) (token, uid string) {
	t.Helper()
	w := performRequest(t, env.engine, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email":    email,
		"password": "secret1",
		"name":     name,
	}, nil)
	assertStatus(t, w, http.StatusCreated)
	body := decodeJSONMap(t, w)
	token, _ = body["token"].(string)
	uid, _ = body["user_id"].(string)
	if token == "" || uid == "" {
		t.Fatalf("signup response missing token or user_id: %v", body)
	}
	return token, uid
}
