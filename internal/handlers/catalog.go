// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"pawtrait/internal/customize"
	"pawtrait/internal/models"
	"pawtrait/internal/shopify"
)

// errCatalog marks loader failures that come from the style catalog rather
// than the commerce platform.
var errCatalog = errors.New("style catalog")

// StyleLister lists the style catalog.
type StyleLister interface {
	List(ctx context.Context) ([]models.Style, error)
}

// ProductFetcher reads a storefront product.
type ProductFetcher interface {
	Product(ctx context.Context, id string) (*models.Product, error)
}

// Catalog serves the style catalog and the product customization loader.
type Catalog struct {
	styles   StyleLister
	products ProductFetcher
}

// NewCatalog creates the catalog handlers. products may be nil when no
// commerce platform is configured; the loader then echoes the product id.
func NewCatalog(styles StyleLister, products ProductFetcher) *Catalog {
	return &Catalog{styles: styles, products: products}
}

type stylesResponse struct {
	Styles []models.Style `json:"styles"`
}

// Styles handles GET /api/styles.
func (c *Catalog) Styles(w http.ResponseWriter, r *http.Request) {
	styles, err := c.styles.List(r.Context())
	if err != nil {
		slog.Error("listing styles failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, msgInternal, customize.KindPersistence.String())
		return
	}
	if styles == nil {
		styles = []models.Style{}
	}
	writeJSON(w, http.StatusOK, stylesResponse{Styles: styles})
}

type loaderResponse struct {
	Styles  []models.Style  `json:"styles"`
	Product *models.Product `json:"product"`
}

// ProductCustomize handles GET /api/products/{productId}/customize. Styles
// and product are fetched concurrently; any failure fails the page.
func (c *Catalog) ProductCustomize(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		writeFailure(w, http.StatusBadRequest, "A product is required.", customize.KindValidation.String())
		return
	}

	var (
		styles  []models.Style
		product *models.Product
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		styles, err = c.styles.List(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", errCatalog, err)
		}
		return nil
	})
	g.Go(func() error {
		if c.products == nil {
			product = &models.Product{ID: productID}
			return nil
		}
		var err error
		product, err = c.products.Product(ctx, productID)
		return err
	})

	err := g.Wait()
	switch {
	case errors.Is(err, shopify.ErrProductNotFound):
		writeFailure(w, http.StatusNotFound, "The product does not exist.", customize.KindNotFound.String())
		return
	case errors.Is(err, errCatalog):
		slog.Error("loading styles for customization page failed", "product", productID, "error", err)
		writeFailure(w, http.StatusInternalServerError, msgInternal, customize.KindPersistence.String())
		return
	case err != nil:
		slog.Error("loading customization page failed", "product", productID, "error", err)
		writeFailure(w, http.StatusBadGateway, "Failed to load product data.", codeUpstream)
		return
	}

	if styles == nil {
		styles = []models.Style{}
	}
	writeJSON(w, http.StatusOK, loaderResponse{Styles: styles, Product: product})
}
