package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/muusmart/iam-service/internal/core/domain"
	"github.com/muusmart/iam-service/internal/core/ports"
	"github.com/muusmart/iam-service/internal/core/service"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (string, error)
	loginFn    func(ctx context.Context, username, password string) (string, error)
	getUserFn  func(ctx context.Context, username string) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (string, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.getUserFn(ctx, username)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, error) {
			if in.Username != "alice" || in.Email != "alice@example.com" || in.Password != "pw123" {
				t.Fatalf("unexpected args: %+v", in)
			}
			return "token123", nil
		},
	}
	handler := NewAuthHandler(stub)

	req := jsonRequest(http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"pw123"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["token"] != "token123" {
		t.Fatalf("expected token, got %+v", resp)
	}
}

func TestAuthHandler_Register_Duplicates(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrUsernameTaken, "username is already taken"},
		{domain.ErrEmailTaken, "email is already registered"},
	}

	for _, tc := range cases {
		e := newTestEcho()
		stub := &stubAuthService{
			registerFn: func(ctx context.Context, in ports.RegisterInput) (string, error) {
				return "", tc.err
			},
		}
		handler := NewAuthHandler(stub)

		req := jsonRequest(http.MethodPost, "/auth/register", `{"username":"alice","email":"other@example.com","password":"pw456"}`)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		_ = handler.Register(c)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%v: expected 400, got %d", tc.err, rec.Code)
		}
		if resp := decodeBody(t, rec); resp["error"] != tc.want {
			t.Fatalf("%v: expected %q, got %v", tc.err, tc.want, resp["error"])
		}
	}
}

func TestAuthHandler_Register_ValidationFailures(t *testing.T) {
	bodies := []string{
		`{"username":"","email":"a@example.com","password":"pw"}`,
		`{"username":"alice","email":"not-an-email","password":"pw"}`,
		`{"username":"alice","email":"a@example.com"}`,
		`{"username":"   ","email":"a@example.com","password":"pw"}`,
		`{"username":"alice","email":"a@example.com","password":"   "}`,
		`{"username":"alice","email":"a@example.com","password":"\t\n"}`,
		// 50 characters but 100 bytes, past bcrypt's limit.
		`{"username":"alice","email":"a@example.com","password":"` + strings.Repeat("é", 50) + `"}`,
		"not-json",
	}

	for _, body := range bodies {
		e := newTestEcho()
		stub := &stubAuthService{
			registerFn: func(ctx context.Context, in ports.RegisterInput) (string, error) {
				t.Fatalf("should not be called for %s", body)
				return "", nil
			},
		}
		handler := NewAuthHandler(stub)

		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", body), rec)

		_ = handler.Register(c)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAuthHandler_Register_MultibytePasswordWithinLimit(t *testing.T) {
	e := newTestEcho()
	var got string
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, error) {
			got = in.Password
			return "tok", nil
		},
	}
	handler := NewAuthHandler(stub)

	// 36 characters, exactly 72 bytes.
	pw := strings.Repeat("é", 36)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register",
		`{"username":"alice","email":"a@example.com","password":"`+pw+`"}`), rec)

	if err := handler.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || got != pw {
		t.Fatalf("expected 200 with password passed through, got %d", rec.Code)
	}
}

func TestAuthHandler_Register_PasswordRejectedByHasher(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, error) {
			return "", fmt.Errorf("hash password: %w", domain.ErrPasswordTooLong)
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register",
		`{"username":"alice","email":"a@example.com","password":"pw"}`), rec)

	if err := handler.Register(c); err != nil {
		t.Fatalf("expected a 400 response, got error %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "password must be at most 72 bytes" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestAuthHandler_Register_UnexpectedErrorBubblesUp(t *testing.T) {
	e := newTestEcho()
	boom := errors.New("mongo unavailable")
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, error) {
			return "", boom
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"pw"}`), rec)

	if err := handler.Register(c); !errors.Is(err, boom) {
		t.Fatalf("expected error to reach the error handler, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, error) {
			if username != "carol" || password != "s3cret" {
				t.Fatalf("unexpected args: %s %s", username, password)
			}
			return "token123", nil
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"username":"carol","password":"s3cret"}`), rec)

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["token"] != "token123" {
		t.Fatalf("expected token, got %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, error) {
			return "", domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"username":"dave","password":"badpass"}`), rec)

	_ = handler.Login(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["error"] != "invalid credentials" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if _, ok := resp["token"]; ok {
		t.Fatal("no token may be returned on failure")
	}
}

func TestAuthHandler_Login_Throttled(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, error) {
			return "", domain.ErrTooManyAttempts
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", `{"username":"frank","password":"x"}`), rec)

	_ = handler.Login(c)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	bodies := []string{
		"{",
		`{"username":"carol"}`,
		`{"username":"   ","password":"pw"}`,
		`{"username":"carol","password":"   "}`,
	}
	for _, body := range bodies {
		e := newTestEcho()
		stub := &stubAuthService{
			loginFn: func(ctx context.Context, username, password string) (string, error) {
				t.Fatalf("should not be called")
				return "", nil
			},
		}
		handler := NewAuthHandler(stub)

		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login", body), rec)

		_ = handler.Login(c)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newTestEcho()
	handler := NewAuthHandler(&stubAuthService{})

	iat := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), rec)
	c.Set(CtxUsername, "alice")
	c.Set(CtxRoles, []string{"USER"})
	c.Set(CtxClaims, &service.TokenClaims{
		Roles: []string{"USER"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(time.Hour)),
		},
	})

	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Username != "alice" || len(resp.Roles) != 1 || resp.Roles[0] != "USER" {
		t.Fatalf("unexpected identity: %+v", resp)
	}
	if !resp.IssuedAt.Equal(iat) || !resp.ExpiresAt.Equal(iat.Add(time.Hour)) {
		t.Fatalf("unexpected timestamps: %+v", resp)
	}
}

func TestAuthHandler_Me_WithoutMiddleware(t *testing.T) {
	e := newTestEcho()
	handler := NewAuthHandler(&stubAuthService{})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), httptest.NewRecorder())

	err := handler.Me(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestAuthHandler_GetUser(t *testing.T) {
	e := newTestEcho()
	stub := &stubAuthService{
		getUserFn: func(ctx context.Context, username string) (*domain.User, error) {
			if username != "alice" {
				return nil, domain.ErrUserNotFound
			}
			return &domain.User{ID: "1", Username: "alice", Email: "alice@example.com", PasswordHash: "secret-hash", Roles: domain.DefaultRoles()}, nil
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/users/alice", nil), rec)
	c.SetParamNames("username")
	c.SetParamValues("alice")

	if err := handler.GetUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") || strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/users/ghost", nil), rec)
	c.SetParamNames("username")
	c.SetParamValues("ghost")

	_ = handler.GetUser(c)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
