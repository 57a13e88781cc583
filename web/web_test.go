package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPages(t *testing.T) {
	p, err := Load()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.Login(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `id="login-form"`)

	rec = httptest.NewRecorder()
	p.Admin(rec, httptest.NewRequest(http.MethodGet, "/admin/articles", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/static/admin.js")
}

func TestStaticAssets(t *testing.T) {
	p, err := Load()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/admin.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	for _, s := range []string{"pointerdown", "keydown", "scroll", "touchstart"} {
		assert.Contains(t, rec.Body.String(), s)
	}

	rec = httptest.NewRecorder()
	p.Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
