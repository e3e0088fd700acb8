package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abu-doc/Cart/internal/domain"
)

type productListerMock struct {
	products []domain.Product
	err      error
}

func (m productListerMock) ListProducts(context.Context) ([]domain.Product, error) {
	return m.products, m.err
}

type cartEngineMock struct {
	upsertResult domain.UpsertResult
	view         domain.CartView
	err          error

	gotCartID    string
	gotProductID string
	gotDelta     int64
	gotItemID    string
}

func (m *cartEngineMock) Upsert(_ context.Context, cartID, productID string, delta int64) (domain.UpsertResult, error) {
	m.gotCartID, m.gotProductID, m.gotDelta = cartID, productID, delta
	return m.upsertResult, m.err
}

func (m *cartEngineMock) Remove(_ context.Context, cartID, itemID string) error {
	m.gotCartID, m.gotItemID = cartID, itemID
	return m.err
}

func (m *cartEngineMock) View(_ context.Context, cartID string) (domain.CartView, error) {
	m.gotCartID = cartID
	return m.view, m.err
}

type checkoutMock struct {
	receipt domain.Receipt
	err     error
	got     domain.CheckoutRequest
	cartID  string
}

func (m *checkoutMock) Checkout(_ context.Context, cartID string, req domain.CheckoutRequest) (domain.Receipt, error) {
	m.cartID, m.got = cartID, req
	return m.receipt, m.err
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestProductHandler_List(t *testing.T) {
	handler := NewProductHandler(productListerMock{products: []domain.Product{
		{ID: "vibe-tee", Name: "Vibe Tee", Price: 599, Image: "tee.png"},
	}}, 5*time.Second, nil)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"id":"vibe-tee","name":"Vibe Tee","price":599,"image":"tee.png"}]`, rec.Body.String())
}

func TestProductHandler_ListEmpty(t *testing.T) {
	handler := NewProductHandler(productListerMock{}, 5*time.Second, nil)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestProductHandler_StoreDown(t *testing.T) {
	handler := NewProductHandler(productListerMock{err: domain.NewStoreError("list products", errors.New("db gone"))}, 5*time.Second, nil)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "service_unavailable", resp.Code)
	assert.NotContains(t, resp.Error, "db gone")
}

func TestCartHandler_UpsertItem(t *testing.T) {
	engine := &cartEngineMock{upsertResult: domain.UpsertResult{
		Item: &domain.LineItem{ID: "line-1", ProductID: "p1", Qty: 3},
	}}
	handler := NewCartHandler(engine, 5*time.Second, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(`{"productId":"p1","qty":3}`))
	rec := httptest.NewRecorder()
	handler.UpsertItem(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"item":{"id":"line-1","productId":"p1","qty":3}}`, rec.Body.String())
	assert.Equal(t, domain.DefaultCartID, engine.gotCartID)
	assert.Equal(t, "p1", engine.gotProductID)
	assert.Equal(t, int64(3), engine.gotDelta)
}

func TestCartHandler_UpsertItemRemoved(t *testing.T) {
	engine := &cartEngineMock{upsertResult: domain.UpsertResult{Removed: true}}
	handler := NewCartHandler(engine, 5*time.Second, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(`{"productId":"p1","qty":-5}`))
	rec := httptest.NewRecorder()
	handler.UpsertItem(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"removed":true}`, rec.Body.String())
	assert.Equal(t, int64(-5), engine.gotDelta)
}

func TestCartHandler_UpsertItemErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed json", body: `{"productId":`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "fractional qty", body: `{"productId":"p1","qty":1.5}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{
			name:       "validation",
			body:       `{"productId":"p1","qty":0}`,
			err:        domain.NewValidationError("invalid data"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name:       "unknown product",
			body:       `{"productId":"ghost","qty":1}`,
			err:        domain.ErrProductNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "store down",
			body:       `{"productId":"p1","qty":1}`,
			err:        domain.NewStoreError("increment", errors.New("timeout")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "service_unavailable",
		},
		{
			name:       "unexpected",
			body:       `{"productId":"p1","qty":1}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCartHandler(&cartEngineMock{err: tt.err}, 5*time.Second, nil)
			rec := httptest.NewRecorder()
			handler.UpsertItem(rec, httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCartHandler_GetCart(t *testing.T) {
	engine := &cartEngineMock{view: domain.CartView{
		Items: []domain.EnrichedLineItem{
			{ID: "line-1", ProductID: "p2", Name: "Hoodie", Price: 500, Image: "h.png", Qty: 3, LineTotal: 1500},
		},
		Total: 1500,
	}}
	handler := NewCartHandler(engine, 5*time.Second, nil)

	rec := httptest.NewRecorder()
	handler.GetCart(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"id":"line-1","productId":"p2","name":"Hoodie","price":500,"image":"h.png","qty":3,"lineTotal":1500}],"total":1500}`, rec.Body.String())
}

func TestCartHandler_GetCartEmpty(t *testing.T) {
	handler := NewCartHandler(&cartEngineMock{}, 5*time.Second, nil)

	rec := httptest.NewRecorder()
	handler.GetCart(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, rec.Body.String())
}

func TestCartHandler_RemoveItem(t *testing.T) {
	engine := &cartEngineMock{}
	handler := NewCartHandler(engine, 5*time.Second, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/line-9", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "line-9")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	handler.RemoveItem(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "line-9", engine.gotItemID)
}

func TestCheckoutHandler_Checkout(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock := &checkoutMock{receipt: domain.Receipt{ReceiptID: "RCT-1-abcdef01", Total: 1500, Currency: "INR", Timestamp: ts}}
	handler := NewCheckoutHandler(mock, 5*time.Second, nil)

	body := `{"name":"Asha","email":"asha@example.com","cartItems":[{"productId":"p2","qty":3,"price":1}]}`
	rec := httptest.NewRecorder()
	handler.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"receiptId":"RCT-1-abcdef01","total":1500,"currency":"INR","timestamp":"2026-01-02T03:04:05Z"}`, rec.Body.String())
	assert.Equal(t, domain.CheckoutRequest{
		Name:  "Asha",
		Email: "asha@example.com",
		Items: []domain.CheckoutItem{{ProductID: "p2", Qty: 3}},
	}, mock.got)
}

func TestCheckoutHandler_MissingCartItemsStaysNil(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNil bool
	}{
		{name: "absent", body: `{"name":"A","email":"a@b.c"}`, wantNil: true},
		{name: "null", body: `{"name":"A","email":"a@b.c","cartItems":null}`, wantNil: true},
		{name: "empty", body: `{"name":"A","email":"a@b.c","cartItems":[]}`, wantNil: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &checkoutMock{}
			handler := NewCheckoutHandler(mock, 5*time.Second, nil)
			rec := httptest.NewRecorder()
			handler.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantNil, mock.got.Items == nil)
		})
	}
}

func TestCheckoutHandler_NonArrayCartItems(t *testing.T) {
	mock := &checkoutMock{}
	handler := NewCheckoutHandler(mock, 5*time.Second, nil)

	rec := httptest.NewRecorder()
	handler.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/checkout",
		strings.NewReader(`{"name":"A","email":"a@b.c","cartItems":"lots"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
}
