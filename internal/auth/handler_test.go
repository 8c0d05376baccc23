package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civitas-platform/civitas/internal/auth"
	"github.com/civitas-platform/civitas/internal/shared"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, email, name, passwordHash string) (*auth.User, error) {
	if s.user != nil && s.user.Email == email {
		return nil, auth.ErrEmailTaken
	}
	s.user = &auth.User{ID: "u-1", Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func doRequest(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, method, path, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.NoError(t, sessionManager.Commit(ctx, res, req, sess))
	return res, sess
}

func TestLoginSucceeds(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	handler, sessions := newAuthHandler(t, &stubRepo{user: &auth.User{
		ID:           "u-1",
		Email:        "user@test.local",
		PasswordHash: string(hashed),
		IsActive:     true,
	}})

	res, sess := doRequest(t, handler, sessions, http.MethodPost, "/auth/login",
		`{"email":"user@test.local","password":"correct-pass"}`)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"id":"u-1"`)
	require.Equal(t, "u-1", sess.User())
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	handler, sessions := newAuthHandler(t, &stubRepo{user: &auth.User{
		ID:           "u-1",
		Email:        "user@test.local",
		PasswordHash: string(hashed),
		IsActive:     true,
	}})

	res, sess := doRequest(t, handler, sessions, http.MethodPost, "/auth/login",
		`{"email":"user@test.local","password":"wrong-pass1"}`)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Empty(t, sess.User())
}

func TestLoginInactiveAccount(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	handler, sessions := newAuthHandler(t, &stubRepo{user: &auth.User{
		ID:           "u-1",
		Email:        "user@test.local",
		PasswordHash: string(hashed),
	}})

	res, _ := doRequest(t, handler, sessions, http.MethodPost, "/auth/login",
		`{"email":"user@test.local","password":"correct-pass"}`)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRegisterAndDuplicate(t *testing.T) {
	repo := &stubRepo{}
	handler, sessions := newAuthHandler(t, repo)

	res, _ := doRequest(t, handler, sessions, http.MethodPost, "/auth/register",
		`{"email":"new@test.local","name":"New User","password":"secret-pass"}`)
	require.Equal(t, http.StatusCreated, res.Code)

	res, _ = doRequest(t, handler, sessions, http.MethodPost, "/auth/register",
		`{"email":"new@test.local","name":"New User","password":"secret-pass"}`)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestMeRequiresLogin(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{})
	res, _ := doRequest(t, handler, sessions, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
