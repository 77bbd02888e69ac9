package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/amicale/amicale/internal/shared"
)

type memoryAuthRepo struct {
	users    map[string]*User
	sessions map[string]int64
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{users: make(map[string]*User), sessions: make(map[string]int64)}
}

func (r *memoryAuthRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryAuthRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	r.sessions[id] = userID
	return nil
}

func (r *memoryAuthRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func newTestHandler(t *testing.T, repo Repository) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "amicale_session", "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, NewService(repo), sessions, csrf), sessions
}

func TestHandleLoginSuccess(t *testing.T) {
	repo := newMemoryAuthRepo()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo.users["tresorier@amicale.test"] = &User{
		ID:           7,
		Email:        "tresorier@amicale.test",
		FullName:     "Marie Dupont",
		PasswordHash: string(hashed),
		IsActive:     true,
	}

	handler, sessions := newTestHandler(t, repo)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"tresorier@amicale.test","password":"correctpass"}`))
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, 200, rr.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, int64(7), resp.UserID)
	require.Equal(t, "Marie Dupont", resp.FullName)
	require.NotEmpty(t, resp.CSRFToken)
	require.Equal(t, "7", sess.User())
}

func TestHandleLoginWrongPassword(t *testing.T) {
	repo := newMemoryAuthRepo()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo.users["tresorier@amicale.test"] = &User{
		ID:           7,
		Email:        "tresorier@amicale.test",
		PasswordHash: string(hashed),
		IsActive:     true,
	}

	handler, sessions := newTestHandler(t, repo)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"tresorier@amicale.test","password":"wrongpassword"}`))
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, 401, rr.Code)
	require.Empty(t, sess.User())
}

func TestHandleLoginInactiveUser(t *testing.T) {
	repo := newMemoryAuthRepo()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo.users["ancien@amicale.test"] = &User{
		ID:           8,
		Email:        "ancien@amicale.test",
		PasswordHash: string(hashed),
		IsActive:     false,
	}

	handler, sessions := newTestHandler(t, repo)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"ancien@amicale.test","password":"correctpass"}`))
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, 401, rr.Code)
}

func TestHandleLoginRejectsInvalidPayload(t *testing.T) {
	handler, sessions := newTestHandler(t, newMemoryAuthRepo())

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"not-an-email","password":"short"}`))
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rr := httptest.NewRecorder()
	handler.handleLogin(rr, req)

	require.Equal(t, 400, rr.Code)
}
