package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ttlcache-api/internal/auth"
	"ttlcache-api/internal/config"
	"ttlcache-api/internal/database"
	"ttlcache-api/internal/middleware"
	"ttlcache-api/internal/realtime"
	"ttlcache-api/internal/store"
	"ttlcache-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *realtime.Hub
	store  *store.Store
	token  string
}

// newTestEnv wires the protected cache routes over an in-memory DB.
func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	hub := realtime.NewHub()
	s := store.New(store.Deps{Config: cfg, DB: db, Hub: hub})
	t.Cleanup(s.Close)

	caches := NewCacheHandler(s)
	ws := &WSHandler{Hub: hub, Log: zap.NewNop()}

	r := gin.New()
	r.POST("/api/login", Login)
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware())
	api.GET("/caches", caches.ListCaches)
	api.GET("/caches/:name/entries", caches.ListEntries)
	api.PUT("/caches/:name/entries/:key", caches.SetEntry)
	api.GET("/caches/:name/entries/:key", caches.GetEntry)
	api.HEAD("/caches/:name/entries/:key", caches.HasEntry)
	api.DELETE("/caches/:name/entries/:key", caches.DeleteEntry)
	api.DELETE("/caches/:name", caches.ClearCache)
	api.GET("/disposals", GetDisposals)
	api.GET("/users", GetAllUsers)
	api.GET("/ws", ws.Stream)

	token, err := auth.GenerateToken("u-1", "alice")
	require.NoError(t, err)

	return &testEnv{router: r, db: db, hub: hub, store: s, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func putEntry(t *testing.T, e *testEnv, path string, body map[string]any) {
	t.Helper()
	w := e.do(t, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
