package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colorbet/internal/account"
	"colorbet/internal/apperr"
	"colorbet/internal/auth"
	"colorbet/internal/testutil"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func newPair(t *testing.T) (*auth.Issuer, *auth.Verifier) {
	t.Helper()
	iss, err := auth.NewIssuer(secret, "colorbet")
	require.NoError(t, err)
	ver, err := auth.NewVerifier(secret, "colorbet", time.Second)
	require.NoError(t, err)
	return iss, ver
}

func TestVerify_RoundTrip(t *testing.T) {
	iss, ver := newPair(t)

	raw, err := iss.Sign(account.Identity{ID: "u1", Email: "a@example.com", Username: "alice", Role: account.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	id, err := ver.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, "a@example.com", id.Email)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, account.RoleAdmin, id.Role)
}

func TestVerify_Rejects(t *testing.T) {
	iss, ver := newPair(t)

	expired, err := iss.Sign(account.Identity{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	otherIss, err := auth.NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), "colorbet")
	require.NoError(t, err)
	forged, err := otherIss.Sign(account.Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	foreignIss, err := auth.NewIssuer(secret, "someone-else")
	require.NoError(t, err)
	foreign, err := foreignIss.Sign(account.Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired":      expired,
		"wrong secret": forged,
		"wrong issuer": foreign,
		"garbage":      "not-a-token",
		"empty":        "",
		"truncated":    expired[:len(expired)/2],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ver.Verify(raw)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestNewVerifier_ShortSecret(t *testing.T) {
	_, err := auth.NewVerifier([]byte("short"), "colorbet", 0)
	assert.Error(t, err)
	_, err = auth.NewIssuer([]byte("short"), "colorbet")
	assert.Error(t, err)
}

func newRouter(t *testing.T) (*gin.Engine, *auth.Issuer, *account.RepositoryImpl) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	iss, ver := newPair(t)
	repo := account.NewRepositoryImpl(testutil.NewDB(t, &account.Account{}))

	r := gin.New()
	api := r.Group("/api", auth.Authenticate(ver, repo, nil))
	api.GET("/me", func(c *gin.Context) {
		acc, err := auth.AccountFrom(c)
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"id": acc.ID})
	})
	api.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, iss, repo
}

func do(r http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r, iss, repo := newRouter(t)

	user, err := iss.Sign(account.Identity{ID: "u1", Username: "alice"}, time.Hour)
	require.NoError(t, err)
	admin, err := iss.Sign(account.Identity{ID: "a1", Role: account.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/me", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/me", "Bearer nope").Code)

	w := do(r, "/api/me", "Bearer "+user)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, do(r, "/api/me?token="+user, "").Code)

	assert.Equal(t, http.StatusForbidden, do(r, "/api/admin", "Bearer "+user).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/api/admin", "Bearer "+admin).Code)

	_, err = repo.SetBlocked(context.Background(), "u1", true, "abuse")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, "/api/me", "Bearer "+user).Code)
}
