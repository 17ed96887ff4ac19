package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupCachedRouter(rc *ResponseCache, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/api/machines", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"hits": *hits})
	})
	r.GET("/api/missing", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestResponseCache(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	hits := 0
	r := setupCachedRouter(rc, &hits)

	first := get(r, "/api/machines")
	second := get(r, "/api/machines")
	assert.Equal(t, 1, hits)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	get(r, "/api/machines?limit=1")
	assert.Equal(t, 2, hits, "query string is part of the key")

	rc.Flush()
	assert.Equal(t, 0, rc.Len())
	get(r, "/api/machines")
	assert.Equal(t, 3, hits)
}

func TestResponseCache_SkipsErrors(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	hits := 0
	r := setupCachedRouter(rc, &hits)

	get(r, "/api/missing")
	w := get(r, "/api/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 2, hits)
}

func TestResponseCache_KeysByPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rc := NewResponseCache(time.Minute)
	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/api/machines", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"route": "machines"}) })
	r.GET("/api/error-codes", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"route": "error-codes"}) })

	// Requests built in-process carry no RequestURI.
	req := httptest.NewRequest(http.MethodGet, "/api/machines", nil)
	req.RequestURI = ""
	r.ServeHTTP(httptest.NewRecorder(), req)

	w := get(r, "/api/error-codes")
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"route":"error-codes"}`, w.Body.String())
	assert.Equal(t, 2, rc.Len())
}
