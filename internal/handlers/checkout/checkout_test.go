package handlers_checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbmarkdown"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := fbdb.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, fbdb.Migrate(db, fbfunnels.Models()...))

	svc := fbfunnels.NewService(db)
	ctx := context.Background()
	f, err := svc.CreateFunnel(ctx, fbfunnels.FunnelInput{Name: "F", Slug: "f"}, nil)
	require.NoError(t, err)
	order := 0
	_, err = svc.CreateStep(ctx, f.ID, fbfunnels.StepInput{
		Name: "Pay", Slug: "pay", StepType: fbfunnels.StepCheckout, OrderIndex: &order,
		Content: map[string]any{"body": "# Buy now"},
	})
	require.NoError(t, err)

	h := NewCheckoutHandler(svc, fbmarkdown.New())
	r := gin.New()
	g := r.Group("/checkout/:funnel_id/:step_id")
	g.GET("", h.Get)
	g.POST("", h.Create)
	g.PUT("", h.Update)
	g.DELETE("", h.Delete)
	g.GET("/preview", h.Preview)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckoutCRUD(t *testing.T) {
	r := setup(t)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/checkout/1/1", "").Code)

	w := do(r, http.MethodPost, "/checkout/1/1", `{"product_name":"Course","product_price":97.5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 97.5, created["product_price"])
	assert.Equal(t, "BRL", created["currency"])
	assert.Equal(t, []any{"pix"}, created["payment_methods"])

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/checkout/1/1", `{"product_name":"Course","product_price":10}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/checkout/1/7", `{"product_name":"Course","product_price":10}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/checkout/5/1", `{"product_name":"Course","product_price":10}`).Code)

	w = do(r, http.MethodPut, "/checkout/1/1", `{"product_price":"120.00","payment_methods":["pix","card"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"product_price":120.00`)
	assert.Contains(t, w.Body.String(), `"product_name":"Course"`)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/checkout/1/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/checkout/1/1", "").Code)
}

func TestCheckoutCreateValidation(t *testing.T) {
	r := setup(t)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/checkout/1/1", `{"product_name":"Course"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/checkout/1/1", `{"product_price":10}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/checkout/x/1", `{}`).Code)
}

func TestCheckoutPreview(t *testing.T) {
	r := setup(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/checkout/1/1", `{"product_name":"Course","product_price":10}`).Code)

	w := do(r, http.MethodGet, "/checkout/1/1/preview", "")
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Checkout map[string]any `json:"checkout"`
		Step     map[string]any `json:"step"`
		Content  map[string]any `json:"content"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "Course", preview.Checkout["product_name"])
	assert.Equal(t, "pay", preview.Step["slug"])
	assert.Contains(t, preview.Content["body_html"], "Buy now</h1>")
	assert.Equal(t, "# Buy now", preview.Content["body"])
}
