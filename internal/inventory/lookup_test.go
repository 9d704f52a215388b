package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

func TestHTTPLookup_GetProduct(t *testing.T) {
	tests := map[string]struct {
		basePath     string
		handler      http.HandlerFunc
		wantNotFound bool
		wantErr      bool
		want         reconcile.Product
	}{
		"found": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/inventory/7", r.URL.Path)
				assert.Equal(t, "cid-42", r.Header.Get(middleware.HeaderCorrelationID))
				_ = json.NewEncoder(w).Encode(Product{ID: 7, Name: "Captain Duck", Quantity: 3, Price: decimal.RequireFromString("2.50")})
			},
			want: reconcile.Product{ID: 7, Name: "Captain Duck", AvailableQuantity: 3, UnitPrice: decimal.RequireFromString("2.50")},
		},
		"base url path prefix is kept": {
			basePath: "/inventory-svc/",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/inventory-svc/api/inventory/7", r.URL.Path)
				_ = json.NewEncoder(w).Encode(Product{ID: 7, Name: "Captain Duck", Quantity: 3, Price: decimal.RequireFromString("2.50")})
			},
			want: reconcile.Product{ID: 7, Name: "Captain Duck", AvailableQuantity: 3, UnitPrice: decimal.RequireFromString("2.50")},
		},
		"not found": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			},
			wantNotFound: true,
		},
		"server error is transient": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
		"garbage body is transient": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			lookup, err := NewHTTPLookup(srv.URL+tt.basePath, srv.Client())
			require.NoError(t, err)

			ctx := middleware.WithCorrelationID(context.Background(), "cid-42")
			got, err := lookup.GetProduct(ctx, 7)

			switch {
			case tt.wantNotFound:
				assert.ErrorIs(t, err, reconcile.ErrProductNotFound)
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, reconcile.ErrProductNotFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want.ID, got.ID)
				assert.Equal(t, tt.want.Name, got.Name)
				assert.Equal(t, tt.want.AvailableQuantity, got.AvailableQuantity)
				assert.True(t, tt.want.UnitPrice.Equal(got.UnitPrice))
			}
		})
	}
}

func TestHTTPLookup_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	lookup, err := NewHTTPLookup(url, nil)
	require.NoError(t, err)

	_, err = lookup.GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reconcile.ErrProductNotFound)
}

type fakeGetter struct {
	products map[int]Product
	err      error
}

func (f fakeGetter) Get(ctx context.Context, id int) (Product, error) {
	if f.err != nil {
		return Product{}, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func TestRepositoryLookup(t *testing.T) {
	ctx := context.Background()
	lookup := NewRepositoryLookup(fakeGetter{products: map[int]Product{
		4: {ID: 4, Name: "Pirate Duck", Quantity: 2, Price: decimal.NewFromInt(3)},
	}})

	got, err := lookup.GetProduct(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableQuantity)

	_, err = lookup.GetProduct(ctx, 5)
	assert.ErrorIs(t, err, reconcile.ErrProductNotFound)

	_, err = NewRepositoryLookup(fakeGetter{err: errors.New("db down")}).GetProduct(ctx, 4)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reconcile.ErrProductNotFound)
}

func TestProductValidate(t *testing.T) {
	tests := map[string]struct {
		p       Product
		wantErr bool
	}{
		"valid":          {p: Product{Name: "Rubber Duck", Quantity: 0, Price: decimal.Zero}},
		"blank name":     {p: Product{Name: "  "}, wantErr: true},
		"negative stock": {p: Product{Name: "Rubber Duck", Quantity: -1}, wantErr: true},
		"negative price": {p: Product{Name: "Rubber Duck", Price: decimal.NewFromInt(-1)}, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProduct)
				return
			}
			assert.NoError(t, err)
		})
	}
}
