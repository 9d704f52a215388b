package inventoryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/duck-emporium/internal/inventory"
)

type fakeRepo struct {
	items  map[int]inventory.Product
	nextID int
	getErr error
	setErr error
}

func newFakeRepo(products ...inventory.Product) *fakeRepo {
	r := &fakeRepo{items: map[int]inventory.Product{}, nextID: 100}
	for _, p := range products {
		r.items[p.ID] = p
	}
	return r
}

func (r *fakeRepo) Get(ctx context.Context, productID int) (inventory.Product, error) {
	if r.getErr != nil {
		return inventory.Product{}, r.getErr
	}
	p, ok := r.items[productID]
	if !ok {
		return inventory.Product{}, inventory.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) List(ctx context.Context) ([]inventory.Product, error) {
	out := []inventory.Product{}
	for id := 1; id <= r.nextID; id++ {
		if p, ok := r.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) Search(ctx context.Context, text string) ([]inventory.Product, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	all, _ := r.List(ctx)
	out := []inventory.Product{}
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(text)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) Create(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	if err := p.Validate(); err != nil {
		return inventory.Product{}, err
	}
	r.nextID++
	p.ID = r.nextID
	r.items[p.ID] = p
	return p, nil
}

func (r *fakeRepo) Upsert(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	if err := p.Validate(); err != nil {
		return inventory.Product{}, err
	}
	r.items[p.ID] = p
	return p, nil
}

func (r *fakeRepo) Delete(ctx context.Context, productID int) error {
	if _, ok := r.items[productID]; !ok {
		return inventory.ErrNotFound
	}
	delete(r.items, productID)
	return nil
}

func (r *fakeRepo) SetQuantity(ctx context.Context, productID, quantity int) error {
	if r.setErr != nil {
		return r.setErr
	}
	p, ok := r.items[productID]
	if !ok {
		return inventory.ErrNotFound
	}
	p.Quantity = quantity
	r.items[productID] = p
	return nil
}

func (r *fakeRepo) Reserve(ctx context.Context, lines []inventory.Line) (inventory.ReserveResult, error) {
	return inventory.ReserveResult{}, nil
}

func captainDuck() inventory.Product {
	return inventory.Product{ID: 7, Name: "Captain Duck", Quantity: 3, Price: decimal.RequireFromString("2.50")}
}

func serve(repo inventory.Repository, req *http.Request) *httptest.ResponseRecorder {
	r := NewRouter(NewHandler(repo, nil), nil, []string{"*"})
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestHealth(t *testing.T) {
	res := serve(newFakeRepo(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "inventory-service") {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestGet_NotFound(t *testing.T) {
	res := serve(newFakeRepo(), httptest.NewRequest(http.MethodGet, "/api/inventory/404", nil))

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGet_InvalidID(t *testing.T) {
	res := serve(newFakeRepo(), httptest.NewRequest(http.MethodGet, "/api/inventory/duck", nil))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGet_OK(t *testing.T) {
	res := serve(newFakeRepo(captainDuck()), httptest.NewRequest(http.MethodGet, "/api/inventory/7", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	var p inventory.Product
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if p.ID != 7 || p.Quantity != 3 || !p.Price.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected body: %+v", p)
	}
}

func TestGet_RepoError(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("boom")
	res := serve(repo, httptest.NewRequest(http.MethodGet, "/api/inventory/7", nil))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestList(t *testing.T) {
	second := inventory.Product{ID: 9, Name: "Rubber Duck", Quantity: 0, Price: decimal.RequireFromString("1.00")}
	res := serve(newFakeRepo(second, captainDuck()), httptest.NewRequest(http.MethodGet, "/api/inventory", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var got []inventory.Product
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != 7 || got[1].ID != 9 {
		t.Fatalf("unexpected list %+v", got)
	}
}

func TestSearch(t *testing.T) {
	second := inventory.Product{ID: 9, Name: "Rubber Duck", Quantity: 0, Price: decimal.RequireFromString("1.00")}
	tests := map[string]struct {
		target string
		want   []int
	}{
		"matches ignoring case":  {target: "/api/inventory/search?name=rubber", want: []int{9}},
		"no match":               {target: "/api/inventory/search?name=goose", want: []int{}},
		"missing name lists all": {target: "/api/inventory/search", want: []int{7, 9}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res := serve(newFakeRepo(second, captainDuck()), httptest.NewRequest(http.MethodGet, tc.target, nil))

			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", res.Code)
			}
			var got []inventory.Product
			if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got == nil {
				t.Fatalf("expected a json array, got %s", res.Body.String())
			}
			ids := make([]int, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("expected ids %v, got %v", tc.want, ids)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("expected ids %v, got %v", tc.want, ids)
				}
			}
		})
	}
}

func TestSearch_RepoError(t *testing.T) {
	repo := newFakeRepo(captainDuck())
	repo.getErr = errors.New("db down")
	res := serve(repo, httptest.NewRequest(http.MethodGet, "/api/inventory/search?name=duck", nil))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestCreate(t *testing.T) {
	repo := newFakeRepo()
	body := bytes.NewBufferString(`{"id":55,"name":"Pirate Duck","quantity":4,"price":"3.25"}`)
	res := serve(repo, httptest.NewRequest(http.MethodPost, "/api/inventory", body))

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var p inventory.Product
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID != 101 {
		t.Fatalf("expected server assigned id 101, got %d", p.ID)
	}
}

func TestCreate_Invalid(t *testing.T) {
	body := bytes.NewBufferString(`{"name":"","quantity":4,"price":"3.25"}`)
	res := serve(newFakeRepo(), httptest.NewRequest(http.MethodPost, "/api/inventory", body))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUpsert_UsesPathID(t *testing.T) {
	repo := newFakeRepo(captainDuck())
	body := bytes.NewBufferString(`{"id":1,"name":"Captain Duck","quantity":10,"price":"2.75"}`)
	res := serve(repo, httptest.NewRequest(http.MethodPut, "/api/inventory/7", body))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := repo.items[7].Quantity; got != 10 {
		t.Fatalf("expected quantity 10, got %d", got)
	}
	if _, ok := repo.items[1]; ok {
		t.Fatalf("body id must not be used")
	}
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo(captainDuck())

	res := serve(repo, httptest.NewRequest(http.MethodDelete, "/api/inventory/7", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	res = serve(repo, httptest.NewRequest(http.MethodDelete, "/api/inventory/7", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", res.Code)
	}
}

func TestAdjust(t *testing.T) {
	tests := map[string]struct {
		body     string
		setErr   error
		wantCode int
		wantQty  int
	}{
		"ok":              {body: `{"productId":7,"quantity":12}`, wantCode: http.StatusOK, wantQty: 12},
		"to zero":         {body: `{"productId":7,"quantity":0}`, wantCode: http.StatusOK, wantQty: 0},
		"invalid json":    {body: `{invalid`, wantCode: http.StatusBadRequest, wantQty: 3},
		"negative":        {body: `{"productId":7,"quantity":-1}`, wantCode: http.StatusBadRequest, wantQty: 3},
		"unknown":         {body: `{"productId":8,"quantity":1}`, wantCode: http.StatusNotFound, wantQty: 3},
		"repo error":      {body: `{"productId":7,"quantity":1}`, setErr: errors.New("boom"), wantCode: http.StatusInternalServerError, wantQty: 3},
		"missing id":      {body: `{"quantity":1}`, wantCode: http.StatusBadRequest, wantQty: 3},
		"string quantity": {body: `{"productId":7,"quantity":"1"}`, wantCode: http.StatusBadRequest, wantQty: 3},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepo(captainDuck())
			repo.setErr = tt.setErr

			req := httptest.NewRequest(http.MethodPost, "/api/inventory/adjust", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			res := serve(repo, req)

			if res.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, res.Code, res.Body.String())
			}
			if got := repo.items[7].Quantity; got != tt.wantQty {
				t.Fatalf("expected quantity %d, got %d", tt.wantQty, got)
			}
		})
	}
}
