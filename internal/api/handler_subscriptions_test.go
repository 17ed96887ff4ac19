package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSubscriptionRouter() *gin.Engine {
	r := gin.Default()
	handler := NewHandler(nil, nil, nil, nil)
	r.PUT("/api/subscriptions", handler.PutSubscription)
	return r
}

func TestPutSubscription(t *testing.T) {
	router := setupSubscriptionRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "week9.xml", sampleReport)

	put := `{"endpoint":"https://push.example.com/abc","p256dh":"key","auth":"secret","subscribed_machines":["M1","NOPE"]}`
	w := env.do(t, http.MethodPut, "/api/subscriptions", strings.NewReader(put))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_machines":["M1"]}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/subscriptions", strings.NewReader(`{"endpoint":"https://push.example.com/abc"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env.handler.webpush.VAPIDPublicKey = "BPublic"
	w = env.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPublic","critical_threshold_minutes":120}`, w.Body.String())
}
