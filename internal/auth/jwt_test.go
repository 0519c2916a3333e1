package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVerifier_IssueAndParse(t *testing.T) {
	v := NewVerifier("secret", zap.NewNop())
	user := uuid.New()

	token, err := v.Issue(user, time.Hour)
	require.NoError(t, err)

	got, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret", zap.NewNop())

	expired, err := v.Issue(uuid.New(), -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewVerifier("other", zap.NewNop()).Issue(uuid.New(), time.Hour)
	require.NoError(t, err)

	badClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "not-a-uuid"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":     expired,
		"wrong key":   otherKey,
		"bad user id": badClaim,
		"garbage":     "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Parse(token)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret", zap.NewNop())
	user := uuid.New()
	token, err := v.Issue(user, time.Hour)
	require.NoError(t, err)

	var seen uuid.UUID
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := UserID(r.Context())
		require.NoError(t, err)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/articles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user, seen)

	for _, header := range []string{"", "Bearer", "Basic " + token, "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodPost, "/articles", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.JSONEq(t, `{"message":"missing or invalid token"}`, rec.Body.String())
	}
}

func TestUserID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := UserID(req.Context())
	assert.ErrorIs(t, err, ErrNoUser)
}
