package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

// HTTPLookup resolves products against the inventory service's REST API.
type HTTPLookup struct {
	BaseURL *url.URL
	HTTP    *http.Client
}

func NewHTTPLookup(baseURL string, httpClient *http.Client) (*HTTPLookup, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid inventory base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPLookup{BaseURL: u, HTTP: httpClient}, nil
}

// GetProduct maps 404 to reconcile.ErrProductNotFound. Every other failure is
// returned as a plain error, which the reconciler treats as transient.
func (l *HTTPLookup) GetProduct(ctx context.Context, id int) (reconcile.Product, error) {
	u := l.BaseURL.JoinPath("api", "inventory", strconv.Itoa(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return reconcile.Product{}, err
	}
	req.Header.Set("Accept", "application/json")
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set(middleware.HeaderCorrelationID, cid)
	}

	resp, err := l.HTTP.Do(req)
	if err != nil {
		return reconcile.Product{}, fmt.Errorf("inventory lookup product %d: %w", id, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return reconcile.Product{}, fmt.Errorf("product %d: %w", id, reconcile.ErrProductNotFound)
	default:
		return reconcile.Product{}, fmt.Errorf("inventory lookup product %d: unexpected status %d", id, resp.StatusCode)
	}

	var p Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return reconcile.Product{}, fmt.Errorf("decode product %d: %w", id, err)
	}
	return p.ToSnapshot(), nil
}

type Getter interface {
	Get(ctx context.Context, productID int) (Product, error)
}

// RepositoryLookup serves reconcile.InventoryLookup straight from a repository
// in the same process.
type RepositoryLookup struct {
	repo Getter
}

func NewRepositoryLookup(repo Getter) *RepositoryLookup {
	return &RepositoryLookup{repo: repo}
}

func (l *RepositoryLookup) GetProduct(ctx context.Context, id int) (reconcile.Product, error) {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return reconcile.Product{}, fmt.Errorf("product %d: %w", id, reconcile.ErrProductNotFound)
		}
		return reconcile.Product{}, err
	}
	return p.ToSnapshot(), nil
}
