package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/service"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/sse"
	"github.com/antonioqueb/inventory-shopping-cart/internal/middleware"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// memBasket 内存购物车存储，够手柄层集成测试使用
type memBasket struct {
	mu    sync.Mutex
	lines map[string]entity.BasketLine // unitID -> line（单用户）
}

func newMemBasket() *memBasket {
	return &memBasket{lines: make(map[string]entity.BasketLine)}
}

func (m *memBasket) ListByUser(context.Context, string) ([]entity.BasketLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.BasketLine, 0, len(m.lines))
	for _, line := range m.lines {
		out = append(out, line)
	}
	return out, nil
}

func (m *memBasket) Upsert(_ context.Context, line *entity.BasketLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[line.UnitID] = *line
	return nil
}

func (m *memBasket) Remove(_ context.Context, _, unitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, unitID)
	return nil
}

func (m *memBasket) Clear(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = make(map[string]entity.BasketLine)
	return nil
}

func (m *memBasket) RemoveHeld(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for unitID, line := range m.lines {
		if line.HasHold {
			delete(m.lines, unitID)
			removed++
		}
	}
	return removed, nil
}

func (m *memBasket) ReplaceAll(_ context.Context, _ string, lines []entity.BasketLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = make(map[string]entity.BasketLine, len(lines))
	for _, line := range lines {
		m.lines[line.UnitID] = line
	}
	return nil
}

// fakeERP 模拟ERP网关的HTTP端
func fakeERP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	envelope := func(w http.ResponseWriter, data interface{}) {
		raw, _ := json.Marshal(data)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0, "message": "success", "data": json.RawMessage(raw),
		})
	}
	mux.HandleFunc("/api/v1/erp/permissions/sales", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, map[string]bool{"granted": true})
	})
	mux.HandleFunc("/api/v1/erp/permissions/inventory", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, map[string]bool{"granted": true})
	})
	mux.HandleFunc("/api/v1/erp/catalog/pricelists", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, []erpgw.Pricelist{})
	})
	mux.HandleFunc("/api/v1/erp/cart/holds", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, erpgw.HoldResult{SuccessCount: 1, OrderID: "hold-http-1"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	erp := fakeERP(t)
	gateway := erpgw.NewClient(erp.URL, "svc-token", 5*time.Second)
	hub := sse.NewHub()
	logger := zap.NewNop()

	permission := service.NewPermissionService(gateway, nil, time.Hour)
	catalog := service.NewCatalogService(gateway, nil, hub, time.Minute)
	cart := service.NewCartService(newMemBasket(), catalog, permission, hub, logger)
	wizards := service.NewWizardService(cart, gateway, hub, permission, time.Millisecond, logger)
	conversion := service.NewConversionService(cart, wizards, catalog, gateway, hub, nil, 5, logger)

	cartHandler := NewCartHandler(cart, catalog)
	wizardHandler := NewWizardHandler(wizards, conversion)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(testSecret))
	v1.GET("/cart", cartHandler.Get)
	v1.POST("/cart/toggle", cartHandler.Toggle)
	v1.POST("/wizards", wizardHandler.Open)
	v1.PATCH("/wizards/:id/fields", wizardHandler.SetFields)
	v1.POST("/wizards/:id/advance", wizardHandler.Advance)
	v1.POST("/wizards/:id/submit", wizardHandler.Submit)
	return router
}

func testToken(t *testing.T) string {
	t.Helper()
	claims := middleware.JWTClaims{
		UserID: "test-user-001",
		Name:   "Test Operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return token
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v (%s)", err, w.Body.String())
	}
	if resp.Code != 0 {
		t.Fatalf("response code = %d: %s", resp.Code, resp.Message)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(t, router, "GET", "/api/v1/cart", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCartToggleOverHTTP(t *testing.T) {
	router := setupTestRouter(t)
	token := testToken(t)

	unit := map[string]interface{}{
		"id": "u1", "lot_id": "lot-u1", "lot_name": "Lu1",
		"product_id": "p1", "product_name": "Marble Slab",
		"quantity": 4.5, "unit_type": "slab", "location_name": "WH/Stock",
	}

	w := doRequest(t, router, "POST", "/api/v1/cart/toggle", token, map[string]interface{}{"unit": unit})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var toggleData struct {
		InCart bool        `json:"in_cart"`
		Cart   entity.Cart `json:"cart"`
	}
	decodeData(t, w, &toggleData)
	if !toggleData.InCart || toggleData.Cart.TotalLots != 1 {
		t.Fatalf("unexpected toggle result: %+v", toggleData)
	}
	if toggleData.Cart.TypeLabel != "Slab" {
		t.Fatalf("type label = %q, want Slab", toggleData.Cart.TypeLabel)
	}

	// 再次切换移除
	w = doRequest(t, router, "POST", "/api/v1/cart/toggle", token, map[string]interface{}{"unit": unit})
	decodeData(t, w, &toggleData)
	if toggleData.InCart || toggleData.Cart.TotalLots != 0 {
		t.Fatalf("expected removal on second toggle: %+v", toggleData)
	}
}

func TestHoldWizardFlowOverHTTP(t *testing.T) {
	router := setupTestRouter(t)
	token := testToken(t)

	unit := map[string]interface{}{
		"id": "u1", "lot_id": "lot-u1", "lot_name": "Lu1",
		"product_id": "p1", "product_name": "Marble Slab",
		"quantity": 4.5, "unit_type": "slab", "location_name": "WH/Stock",
	}
	w := doRequest(t, router, "POST", "/api/v1/cart/toggle", token, map[string]interface{}{"unit": unit})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", w.Code)
	}

	// 打开预留向导
	w = doRequest(t, router, "POST", "/api/v1/wizards", token, map[string]interface{}{"kind": "hold"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open status = %d body=%s", w.Code, w.Body.String())
	}
	var state entity.WizardState
	decodeData(t, w, &state)
	if len(state.Steps) != 3 || state.CurrentStep != 1 {
		t.Fatalf("unexpected wizard state: %+v", state)
	}

	// 填写三个必选对象并推进到最后一步
	w = doRequest(t, router, "PATCH", "/api/v1/wizards/"+state.ID+"/fields", token, map[string]interface{}{
		"counterpart": map[string]string{"id": "c1", "name": "Acme"},
		"project":     map[string]string{"id": "pr1", "name": "Tower"},
		"contact":     map[string]string{"id": "ct1", "name": "Jordan"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("fields status = %d body=%s", w.Code, w.Body.String())
	}
	for i := 0; i < 2; i++ {
		w = doRequest(t, router, "POST", "/api/v1/wizards/"+state.ID+"/advance", token, nil)
		decodeData(t, w, &state)
	}
	if !state.OnLastStep() {
		t.Fatalf("expected last step, at %d", state.CurrentStep)
	}

	// 提交转换
	w = doRequest(t, router, "POST", "/api/v1/wizards/"+state.ID+"/submit", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d body=%s", w.Code, w.Body.String())
	}
	var outcome struct {
		Status  string `json:"status"`
		OrderID string `json:"order_id"`
	}
	decodeData(t, w, &outcome)
	if outcome.Status != "created" || outcome.OrderID != "hold-http-1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	// 成功后购物车已清空
	var cart entity.Cart
	w = doRequest(t, router, "GET", "/api/v1/cart", token, nil)
	decodeData(t, w, &cart)
	if cart.TotalLots != 0 {
		t.Fatalf("cart should be cleared, lots=%d", cart.TotalLots)
	}
}
