package handlers_credentials

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"funnelboard/internal/models/fbcredentials"
	"funnelboard/internal/models/fbdb"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := fbdb.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, fbdb.Migrate(db, fbcredentials.Models()...))

	h := NewCredentialsHandler(fbcredentials.NewService(db))
	r := gin.New()
	r.GET("/credentials", h.List)
	r.POST("/credentials", h.Create)
	r.PUT("/credentials/:id", h.Update)
	r.DELETE("/credentials/:id", h.Delete)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCredentialsCRUD(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/credentials", `{"name":"gw","service":"skalepay","api_key":"sk_live_abcdefghijkl","api_secret":"shh","api_url":"https://api.example/"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "abcdefghijkl")
	assert.NotContains(t, w.Body.String(), "shh")

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "sk_live_ab...", created["api_key"])
	assert.Equal(t, "https://api.example", created["api_url"])
	assert.Equal(t, true, created["is_active"])

	w = do(r, http.MethodPut, "/credentials/1", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_active":false`)

	w = do(r, http.MethodGet, "/credentials", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = do(r, http.MethodDelete, "/credentials/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodDelete, "/credentials/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCredentialValidation(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/credentials", `{"name":"gw"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/credentials", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/credentials/abc", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
