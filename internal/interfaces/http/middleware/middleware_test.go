package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subject": c.GetString(AdminSubjectKey)})
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORSWithConfig(CORSConfig{
		AllowOrigins: []string{"https://ops.example.com"},
		AllowMethods: []string{"GET", "PUT"},
		AllowHeaders: []string{"Authorization"},
		MaxAge:       time.Hour,
	}))
	r.GET("/", okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeTooLarge, resp.Error.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func signToken(t *testing.T, secret string, claims AdminClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAdminAuth(t *testing.T) {
	const secret = "test-secret"
	r := gin.New()
	r.Use(AdminAuth(AdminAuthConfig{Secret: secret, Issuer: "afp-certifier"}))
	r.GET("/", okHandler)

	valid := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			Issuer:    "afp-certifier",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	viewer := valid
	viewer.Role = "viewer"
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", valid), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, secret, expired), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, secret, wrongIssuer), http.StatusUnauthorized},
		{"not admin", "Bearer " + signToken(t, secret, viewer), http.StatusForbidden},
		{"admin", "Bearer " + signToken(t, secret, valid), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAdminAuth_RejectsNoneAlgorithm(t *testing.T) {
	r := gin.New()
	r.Use(AdminAuth(AdminAuthConfig{Secret: "s"}))
	r.GET("/", okHandler)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_DisabledWithoutSecret(t *testing.T) {
	r := gin.New()
	r.Use(AdminAuth(AdminAuthConfig{}))
	r.GET("/", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

type seedBody struct {
	ID    string `json:"id" binding:"required,max=4"`
	Count int    `json:"count" binding:"min=1"`
}

func TestValidationErrors(t *testing.T) {
	SetupValidator()
	r := gin.New()
	r.Use(RequestID())
	r.POST("/", func(c *gin.Context) {
		var body seedBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"id":"toolong","count":0}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
	assert.ElementsMatch(t, []dto.ValidationDetail{
		{Field: "id", Message: "Must be at most 4 characters"},
		{Field: "count", Message: "Must be at least 1"},
	}, resp.Error.Details)
}
