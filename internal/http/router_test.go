package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/quotes-service/internal/config"
	"github.com/pribylovaa/quotes-service/internal/service"
	"github.com/pribylovaa/quotes-service/internal/storage/memory"
	"github.com/pribylovaa/quotes-service/internal/token"
)

const cookieName = "refreshToken"

func authCfg(rotate bool) config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "access-router-secret",
		RefreshSecret:   "refresh-router-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "quotes-service",
		RotateRefresh:   rotate,
		BcryptCost:      bcrypt.MinCost,
	}
}

func testOptions() Options {
	return Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:   5 * time.Second,
		BodyLimit: 16 << 10,
		Cookie: config.CookieConfig{
			Name:     cookieName,
			Path:     "/",
			Secure:   true,
			SameSite: "lax",
		},
		CORS: config.CORSConfig{
			AllowedOrigins:   []string{"http://localhost:5173"},
			AllowCredentials: true,
		},
	}
}

func newTestRouter(t *testing.T, rotate bool, mutate ...func(*Options)) http.Handler {
	t.Helper()

	cfg := authCfg(rotate)
	iss, err := token.New(cfg)
	require.NoError(t, err)

	store := memory.New()
	svc := service.New(store, iss, cfg)

	opts := testOptions()
	opts.Store = store
	for _, m := range mutate {
		m(&opts)
	}

	return NewRouter(svc, opts)
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Code       string          `json:"code"`
	Errors     []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	RequestID string `json:"requestId"`
}

type reqOpt func(*http.Request)

func withBearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func do(t *testing.T, h http.Handler, method, target, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	require.Equal(t, rr.Code, env.StatusCode)
	return env
}

func refreshCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rr.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("cookie %q not set", cookieName)
	return nil
}

type loginData struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	User            struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
	} `json:"user"`
}

type quoteData struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"ownerId"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
}

// login регистрирует и логинит пользователя; возвращает access-токен и refresh-cookie.
func login(t *testing.T, h http.Handler, name, pw string) (loginData, *http.Cookie) {
	t.Helper()

	rr := do(t, h, http.MethodPost, "/register", `{"username":"`+name+`","password":"`+pw+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/login", `{"username":"`+name+`","password":"`+pw+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var data loginData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	return data, refreshCookie(t, rr)
}

func TestRouter_HomeAndTest(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	rr := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Hello World", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/test", "")
	require.Equal(t, http.StatusOK, rr.Code)
	env := decode(t, rr)
	require.True(t, env.Success)
	require.Equal(t, "Test successful", env.Message)
	require.Equal(t, "null", string(env.Data))
	require.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRouter_Register(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	rr := do(t, h, http.MethodPost, "/register",
		`{"username":" Alice ","password":"pw1","email":"Alice@Example.com","fullName":"Alice A"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	env := decode(t, rr)
	require.True(t, env.Success)

	var u map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &u))
	require.Equal(t, "alice", u["username"])
	require.Equal(t, "alice@example.com", u["email"])
	require.NotContains(t, rr.Body.String(), "password")

	rr = do(t, h, http.MethodPost, "/register", `{"username":"alice","password":"pw2"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "user_exists", decode(t, rr).Code)
}

func TestRouter_Register_Validation(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing_username", `{"password":"pw1"}`, "username"},
		{"missing_password", `{"username":"alice"}`, "password"},
		{"empty_body", ``, "username"},
		{"unknown_field", `{"username":"alice","password":"pw1","role":"admin"}`, "role"},
		{"unknown_profile_field", `{"username":"bob","password":"pw1","avatar":"x"}`, "avatar"},
		{"bad_username_chars", `{"username":"a b c","password":"pw1"}`, "username"},
		{"bad_email", `{"username":"alice","password":"pw1","email":"nope"}`, "email"},
		{"malformed_json", `{"username":`, "body"},
		{"wrong_type", `{"username":42,"password":"pw1"}`, "username"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rr := do(t, h, http.MethodPost, "/register", tt.body, func(r *http.Request) {
				r.Header.Set("Content-Type", "application/json")
			})
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			env := decode(t, rr)
			require.Equal(t, "validation_failed", env.Code)
			require.False(t, env.Success)
			require.NotEmpty(t, env.Errors)
			require.Equal(t, tt.wantField, env.Errors[0].Field)
		})
	}
}

func TestRouter_FormEncodedBody(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	// Лишние ключи формы игнорируются.
	form := url.Values{"username": {"bob"}, "password": {"pw1"}, "avatar": {"x"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRouter_BodyTooLarge(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false, func(o *Options) { o.BodyLimit = 64 })

	body := `{"username":"alice","password":"` + strings.Repeat("p", 100) + `"}`
	rr := do(t, h, http.MethodPost, "/register", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env := decode(t, rr)
	require.Equal(t, "validation_failed", env.Code)
	require.Equal(t, "body", env.Errors[0].Field)
}

func TestRouter_Login_NoEnumeration(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)
	rr := do(t, h, http.MethodPost, "/register", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	wrong := do(t, h, http.MethodPost, "/login", `{"username":"alice","password":"nope"}`)
	unknown := do(t, h, http.MethodPost, "/login", `{"username":"ghost","password":"nope"}`)

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)

	a, b := decode(t, wrong), decode(t, unknown)
	require.Equal(t, "invalid_credentials", a.Code)
	require.Equal(t, a.Code, b.Code)
	require.Equal(t, a.Message, b.Message)
	require.Empty(t, wrong.Result().Cookies())
}

func TestRouter_SessionLifecycle(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	data, c1 := login(t, h, "alice", "pw1")
	require.NotEmpty(t, data.AccessToken)
	require.Equal(t, "alice", data.User.Username)

	require.True(t, c1.HttpOnly)
	require.True(t, c1.Secure)
	require.Equal(t, http.SameSiteLaxMode, c1.SameSite)
	require.Equal(t, "/", c1.Path)
	require.Positive(t, c1.MaxAge)
	require.NotContains(t, string(mustBody(t, h, c1)), c1.Value)

	// refresh по cookie; без ротации cookie не переустанавливается
	rr := do(t, h, http.MethodPost, "/refresh", "", withCookie(c1))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Empty(t, rr.Result().Cookies())

	var pair struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &pair))
	require.NotEmpty(t, pair.AccessToken)

	// запасной канал: токен в теле
	rr = do(t, h, http.MethodPost, "/refresh", `{"refreshToken":"`+c1.Value+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// повторный вход отзывает первую сессию
	rr = do(t, h, http.MethodPost, "/login", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	c2 := refreshCookie(t, rr)

	rr = do(t, h, http.MethodPost, "/refresh", "", withCookie(c1))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "session_revoked", decode(t, rr).Code)

	rr = do(t, h, http.MethodPost, "/refresh", "", withCookie(c2))
	require.Equal(t, http.StatusOK, rr.Code)

	// logout очищает cookie и сессию
	rr = do(t, h, http.MethodPost, "/logout", "", withCookie(c2))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cleared := refreshCookie(t, rr)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	rr = do(t, h, http.MethodPost, "/refresh", "", withCookie(c2))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "session_revoked", decode(t, rr).Code)
}

// mustBody возвращает тело ответа /refresh, чтобы убедиться, что refresh-токен не попадает в JSON.
func mustBody(t *testing.T, h http.Handler, c *http.Cookie) []byte {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/refresh", "", withCookie(c))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.Bytes()
}

func TestRouter_Refresh_RotationResetsCookie(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, true)
	_, c1 := login(t, h, "alice", "pw1")

	rr := do(t, h, http.MethodPost, "/refresh", "", withCookie(c1))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	c2 := refreshCookie(t, rr)
	require.NotEqual(t, c1.Value, c2.Value)

	rr = do(t, h, http.MethodPost, "/refresh", "", withCookie(c1))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/refresh", "", withCookie(c2))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Refresh_Errors(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	rr := do(t, h, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "missing_token", decode(t, rr).Code)

	rr = do(t, h, http.MethodPost, "/refresh", "", withCookie(&http.Cookie{Name: cookieName, Value: "junk"}))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "invalid_token", decode(t, rr).Code)

	// logout с негодным токеном тоже стирает cookie
	rr = do(t, h, http.MethodPost, "/logout", "", withCookie(&http.Cookie{Name: cookieName, Value: "junk"}))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, refreshCookie(t, rr).Value)
}

func TestRouter_Quotes(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)
	alice, _ := login(t, h, "alice", "pw1")
	bob, _ := login(t, h, "bob", "pw1")

	rr := do(t, h, http.MethodPost, "/addQuote", `{"text":"hi"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "missing_token", decode(t, rr).Code)

	rr = do(t, h, http.MethodPost, "/addQuote", `{"text":"hi"}`, withBearer("junk"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "invalid_token", decode(t, rr).Code)

	rr = do(t, h, http.MethodPost, "/addQuote", `{"text":"  "}`, withBearer(alice.AccessToken))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "text", decode(t, rr).Errors[0].Field)

	rr = do(t, h, http.MethodPost, "/addQuote",
		`{"text":"Stay hungry","author":"Jobs"}`, withBearer(alice.AccessToken))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var q quoteData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &q))
	require.Equal(t, alice.User.ID, q.OwnerID)
	require.Equal(t, "Stay hungry", q.Text)

	rr = do(t, h, http.MethodGet, "/quotes?limit=10", "", withBearer(alice.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code)
	var list []quoteData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &list))
	require.Len(t, list, 1)

	rr = do(t, h, http.MethodGet, "/quotes", "", withBearer(bob.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "[]", string(decode(t, rr).Data))

	rr = do(t, h, http.MethodGet, "/quotes?limit=ten", "", withBearer(bob.AccessToken))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "limit", decode(t, rr).Errors[0].Field)

	del := `{"id":"` + q.ID.String() + `"}`

	rr = do(t, h, http.MethodPost, "/deleteQuote", del, withBearer(bob.AccessToken))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decode(t, rr).Code)

	rr = do(t, h, http.MethodPost, "/deleteQuote", `{"id":"nope"}`, withBearer(alice.AccessToken))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "id", decode(t, rr).Errors[0].Field)

	rr = do(t, h, http.MethodPost, "/deleteQuote", del, withBearer(alice.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/deleteQuote", del, withBearer(alice.AccessToken))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decode(t, rr).Code)
}

func TestRouter_RequestIDInErrorBody(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	rr := do(t, h, http.MethodPost, "/login", `{"username":"ghost","password":"x"}`, func(r *http.Request) {
		r.Header.Set("X-Request-Id", "rid-42")
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "rid-42", decode(t, rr).RequestID)
	require.Equal(t, "rid-42", rr.Header().Get("X-Request-Id"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_BasePath(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, false, func(o *Options) { o.BasePath = "/api" })

	rr := do(t, h, http.MethodGet, "/api/test", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/test", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/livez", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func TestRouter_Probes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ready bool
		ping  error
		want  int
	}{
		{"ready", true, nil, http.StatusOK},
		{"not_ready", false, nil, http.StatusServiceUnavailable},
		{"store_down", true, errors.New("down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestRouter(t, false, func(o *Options) {
				o.Ready = func() bool { return tt.ready }
				o.Store = pingStub{err: tt.ping}
			})

			require.Equal(t, tt.want, do(t, h, http.MethodGet, "/healthz", "").Code)
			require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/livez", "").Code)
		})
	}
}
