package httpkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testSecrets struct{}

func (testSecrets) GetJWTAccessSecret() string { return "jwt-secret" }
func (testSecrets) GetOpsCronSecret() string   { return "cron-secret" }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCronSecretRequired(t *testing.T) {
	r := gin.New()
	r.POST("/ops", CronSecretRequired(testSecrets{}), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"header", HeaderCronSecret, "cron-secret", http.StatusNoContent},
		{"bearer", "Authorization", "Bearer cron-secret", http.StatusNoContent},
		{"wrong", HeaderCronSecret, "nope", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ops", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAuthRequiredSetsIdentity(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       userID.String(),
		"tenant_id": tenantID.String(),
		"type":      "access",
		"roles":     []string{"agent"},
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	var got Identity
	r := gin.New()
	r.GET("/me", AuthRequired(testSecrets{}), func(c *gin.Context) {
		got = GetIdentity(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID, got.UserID())
	tenant, ok := got.TenantID()
	require.True(t, ok)
	require.Equal(t, tenantID, tenant)
	require.True(t, got.HasRole("agent"))
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired(testSecrets{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token=abc", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type memberSet map[uuid.UUID]bool

func (m memberSet) IsMember(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return m[userID], nil
}

func TestTenantMemberRequired(t *testing.T) {
	member := uuid.New()
	outsider := uuid.New()
	tenant := uuid.New()

	serve := func(set func(c *gin.Context)) int {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			set(c)
			c.Next()
		}, TenantMemberRequired(memberSet{member: true}), func(c *gin.Context) { c.Status(http.StatusOK) })
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve(func(c *gin.Context) {
		c.Set(ContextUserIDKey, member)
		c.Set(ContextTenantIDKey, tenant)
	}))
	require.Equal(t, http.StatusForbidden, serve(func(c *gin.Context) {
		c.Set(ContextUserIDKey, outsider)
		c.Set(ContextTenantIDKey, tenant)
	}))
	require.Equal(t, http.StatusBadRequest, serve(func(c *gin.Context) {
		c.Set(ContextUserIDKey, member)
	}))
	require.Equal(t, http.StatusUnauthorized, serve(func(*gin.Context) {}))
}
