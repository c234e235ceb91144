package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/muusmart/iam-service/internal/core/domain"
	"github.com/muusmart/iam-service/internal/core/service"
	"github.com/muusmart/iam-service/internal/infrastructure/http/handlers"
	"github.com/muusmart/iam-service/internal/infrastructure/security"
)

// memUsers is an in-memory credential store.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	return err == nil, nil
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *user
	stored.ID = user.Username + "-id"
	m.users[user.Username] = &stored
	clone := stored
	return &clone, nil
}

func (m *memUsers) promote(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username].Roles = append(m.users[username].Roles, domain.RoleAdmin)
}

var (
	routerOnce  sync.Once
	testRouter  *echo.Echo
	testUsers   *memUsers
	routerError error
)

// sharedRouter builds the router once; the Prometheus middleware registers
// its collectors globally.
func sharedRouter(t *testing.T) (*echo.Echo, *memUsers) {
	t.Helper()
	routerOnce.Do(func() {
		testUsers = &memUsers{users: make(map[string]*domain.User)}
		tokens, err := service.NewTokenService([]byte("router-test-secret-0123456789abc"), time.Hour)
		if err != nil {
			routerError = err
			return
		}
		authService := service.NewAuthService(testUsers, security.NewBcryptHasher(bcrypt.MinCost), tokens, zerolog.Nop())
		testRouter = NewRouter(Deps{
			AuthService: authService,
			Tokens:      tokens,
			Loader:      service.NewIdentityLoader(testUsers),
			Checks:      map[string]handlers.Check{"mongodb": func(context.Context) error { return nil }},
			Logger:      zerolog.Nop(),
		})
	})
	if routerError != nil {
		t.Fatalf("build router: %v", routerError)
	}
	return testRouter, testUsers
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func tokenFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	if resp["token"] == "" {
		t.Fatalf("expected token in %q", rec.Body.String())
	}
	return resp["token"]
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	e, _ := sharedRouter(t)

	rec := do(e, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"pw123"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	tokenFrom(t, rec)

	rec = do(e, http.MethodPost, "/auth/register", `{"username":"alice","email":"other@example.com","password":"pw456"}`, "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "username is already taken") {
		t.Fatalf("duplicate register: got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/auth/login", `{"username":"alice","password":"wrong"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw123"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	token := tokenFrom(t, rec)

	rec = do(e, http.MethodGet, "/auth/me", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var me struct {
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if me.Username != "alice" || len(me.Roles) != 1 || me.Roles[0] != "USER" {
		t.Fatalf("unexpected identity: %+v", me)
	}

	if rec := do(e, http.MethodGet, "/auth/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/auth/me", "", token+"x"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me with tampered token: expected 401, got %d", rec.Code)
	}
}

func TestRouter_RejectsUnusableCredentials(t *testing.T) {
	e, users := sharedRouter(t)

	cases := []struct {
		path, body string
	}{
		{"/auth/register", `{"username":"blankpw","email":"blankpw@example.com","password":"   "}`},
		{"/auth/register", `{"username":"longpw","email":"longpw@example.com","password":"` + strings.Repeat("é", 50) + `"}`},
		{"/auth/login", `{"username":"   ","password":"pw"}`},
		{"/auth/login", `{"username":"alice","password":"   "}`},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodPost, tc.path, tc.body, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected 400, got %d %s", tc.path, tc.body, rec.Code, rec.Body.String())
		}
	}
	for _, name := range []string{"blankpw", "longpw"} {
		if ok, _ := users.ExistsByUsername(context.Background(), name); ok {
			t.Errorf("%s should not have been stored", name)
		}
	}
}

func TestRouter_AdminRequiresAdminRole(t *testing.T) {
	e, users := sharedRouter(t)

	rec := do(e, http.MethodPost, "/auth/register", `{"username":"bob","email":"bob@example.com","password":"pw"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", rec.Code)
	}
	token := tokenFrom(t, rec)

	if rec := do(e, http.MethodGet, "/admin/users/bob", "", token); rec.Code != http.StatusForbidden {
		t.Fatalf("USER on admin route: expected 403, got %d", rec.Code)
	}

	// Roles are read from the store on every request, so a promotion takes
	// effect without a new token.
	users.promote("bob")

	rec = do(e, http.MethodGet, "/admin/users/bob", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("ADMIN on admin route: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/admin/users/nobody", "", token); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", rec.Code)
	}
}

func TestRouter_OpsEndpoints(t *testing.T) {
	e, _ := sharedRouter(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		if rec := do(e, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
