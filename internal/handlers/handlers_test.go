// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pawtrait/internal/customize"
	"pawtrait/internal/models"
	"pawtrait/internal/shopify"
)

type fakeSubmitter struct {
	limit int64
	got   customize.Submission
	calls int
	res   *customize.Result
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, sub customize.Submission) (*customize.Result, error) {
	f.calls++
	f.got = sub
	return f.res, f.err
}

func (f *fakeSubmitter) MaxUploadBytes() int64 { return f.limit }

type fakeImages struct {
	byID map[uuid.UUID]*models.GeneratedImage
	err  error
}

func (f *fakeImages) FindByID(_ context.Context, id uuid.UUID) (*models.GeneratedImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeImages) ListByProduct(_ context.Context, productID string, limit int) ([]models.GeneratedImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.GeneratedImage
	for _, g := range f.byID {
		if g.ProductID == productID && len(out) < limit {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeImages) CountByProduct(_ context.Context, productID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, g := range f.byID {
		if g.ProductID == productID {
			n++
		}
	}
	return n, nil
}

type fakeStyles struct {
	list []models.Style
	err  error
}

func (f *fakeStyles) List(context.Context) ([]models.Style, error) { return f.list, f.err }

func (f *fakeStyles) FindByID(_ context.Context, id uuid.UUID) (*models.Style, error) {
	for i := range f.list {
		if f.list[i].ID == id {
			return &f.list[i], nil
		}
	}
	return nil, f.err
}

type fakeLinks struct{}

func (fakeLinks) ExtractPrivateKey(raw string) (string, bool) {
	const prefix = "http://s3.test/private/"
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	return raw[len(prefix):], true
}

func (fakeLinks) PresignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "http://s3.test/" + bucket + "/" + key + "?X-Amz-Signature=sig", nil
}

func (fakeLinks) PrivateBucket() string { return "private" }

type fakeProducts struct {
	product *models.Product
	err     error
}

func (f *fakeProducts) Product(context.Context, string) (*models.Product, error) {
	return f.product, f.err
}

var (
	royal = models.Style{ID: uuid.MustParse("6f1c1f2e-2b7a-4c55-9a8f-0d7f7e0f4a11"), Name: "Portrait Royal"}
	generated = models.GeneratedImage{
		ID:                uuid.MustParse("0b5e9c1d-3f7a-4a2b-8c6d-1e2f3a4b5c6d"),
		OriginalImageURL:  "http://s3.test/private/originals/2026/10/a.jpg",
		GeneratedImageURL: "http://cdn.test/generated/2026/10/b.png",
		StyleID:           royal.ID,
		ProductID:         "778812345",
	}
)

// newTestRouter mounts the handlers the same way the server does.
func newTestRouter(sub Submitter, products ProductFetcher) http.Handler {
	styles := &fakeStyles{list: []models.Style{royal}}
	images := &fakeImages{byID: map[uuid.UUID]*models.GeneratedImage{generated.ID: &generated}}
	c := NewCustomizations(sub, images, styles, fakeLinks{})
	cat := NewCatalog(styles, products)

	r := chi.NewRouter()
	r.Get("/api/styles", cat.Styles)
	r.Get("/api/products/{productId}/customize", cat.ProductCustomize)
	r.Get("/api/products/{productId}/customizations", c.List)
	r.Post("/api/customizations", c.Create)
	r.Get("/api/customizations/{id}", c.Get)
	r.Post("/api/customizations/{id}/cart", c.AddToCart)
	return r
}

func multipartBody(t *testing.T, photo []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if photo != nil {
		fw, err := mw.CreateFormFile("petPhoto", "rex.jpg")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(photo)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestCreate_Success(t *testing.T) {
	sub := &fakeSubmitter{limit: 1 << 20, res: &customize.Result{Image: &generated, Style: &royal, Message: customize.SuccessMessage}}
	h := newTestRouter(sub, nil)

	body, ct := multipartBody(t, []byte("jpeg-bytes"), map[string]string{"styleId": " Portrait Royal ", "productId": "778812345", "extra": "ignored"})
	req := httptest.NewRequest(http.MethodPost, "/api/customizations", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	out := decode(t, rr)
	if out["success"] != true || out["generatedImageId"] != generated.ID.String() ||
		out["generatedImageUrl"] != generated.GeneratedImageURL || out["message"] != customize.SuccessMessage {
		t.Errorf("body: got %v", out)
	}
	if string(sub.got.Photo) != "jpeg-bytes" || sub.got.StyleID != "Portrait Royal" || sub.got.ProductID != "778812345" {
		t.Errorf("submission: got %+v", sub.got)
	}
}

func TestCreate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &customize.Error{Kind: customize.KindValidation, Message: "Please provide a photo and a style."}, http.StatusBadRequest, "validation_error"},
		{"too large", &customize.Error{Kind: customize.KindValidation, Message: "big", Cause: customize.ErrPhotoTooLarge}, http.StatusRequestEntityTooLarge, "validation_error"},
		{"not found", &customize.Error{Kind: customize.KindNotFound, Message: "The selected style does not exist."}, http.StatusNotFound, "not_found"},
		{"generation terminal", &customize.Error{Kind: customize.KindGeneration, Message: "no"}, http.StatusBadGateway, "generation_error"},
		{"generation retryable", &customize.Error{Kind: customize.KindGeneration, Message: "busy", Retryable: true}, http.StatusServiceUnavailable, "generation_error"},
		{"persistence", &customize.Error{Kind: customize.KindPersistence, Message: "not saved", Cause: errors.New("pq: boom")}, http.StatusInternalServerError, "persistence_error"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSubmitter{limit: 1 << 20, err: tt.err}, nil)
			body, ct := multipartBody(t, []byte("x"), map[string]string{"styleId": "s", "productId": "p"})
			req := httptest.NewRequest(http.MethodPost, "/api/customizations", body)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d", rr.Code, tt.status)
			}
			out := decode(t, rr)
			if out["success"] != false || out["code"] != tt.code {
				t.Errorf("body: got %v", out)
			}
			if strings.Contains(rr.Body.String(), "pq: boom") {
				t.Error("cause leaked into response")
			}
		})
	}
}

func TestCreate_RejectsBeforeService(t *testing.T) {
	t.Run("oversized photo", func(t *testing.T) {
		sub := &fakeSubmitter{limit: 1024}
		h := newTestRouter(sub, nil)
		body, ct := multipartBody(t, bytes.Repeat([]byte{0xff}, 4096), map[string]string{"styleId": "s", "productId": "p"})
		req := httptest.NewRequest(http.MethodPost, "/api/customizations", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status: got %d, want 413", rr.Code)
		}
		if sub.calls != 0 {
			t.Error("service should not be called")
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		sub := &fakeSubmitter{limit: 1024}
		h := newTestRouter(sub, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/customizations", strings.NewReader(`{"styleId":"s"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", rr.Code)
		}
		if out := decode(t, rr); out["error"] != msgMissingInput {
			t.Errorf("message: got %v", out["error"])
		}
		if sub.calls != 0 {
			t.Error("service should not be called")
		}
	})

	t.Run("storage not configured", func(t *testing.T) {
		h := newTestRouter(nil, nil)
		body, ct := multipartBody(t, []byte("x"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/customizations", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status: got %d, want 503", rr.Code)
		}
	})
}

func TestCreate_MissingPhotoReachesService(t *testing.T) {
	sub := &fakeSubmitter{limit: 1024, err: &customize.Error{Kind: customize.KindValidation, Message: msgMissingInput}}
	h := newTestRouter(sub, nil)
	body, ct := multipartBody(t, nil, map[string]string{"styleId": "s"})
	req := httptest.NewRequest(http.MethodPost, "/api/customizations", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
	if sub.got.Photo != nil || sub.got.ProductID != "" {
		t.Errorf("submission: got %+v", sub.got)
	}
}

func TestGet(t *testing.T) {
	h := newTestRouter(nil, nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/customizations/" + generated.ID.String(), http.StatusOK},
		{"/api/customizations/" + uuid.NewString(), http.StatusNotFound},
		{"/api/customizations/not-a-uuid", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/customizations/"+generated.ID.String(), nil))
	var out imageResponse
	json.Unmarshal(rr.Body.Bytes(), &out)
	if out.Image == nil || out.Image.ID != generated.ID {
		t.Fatalf("image: got %+v", out.Image)
	}
	want := "http://s3.test/private/originals/2026/10/a.jpg?X-Amz-Signature=sig"
	if out.Image.OriginalImageURL != want {
		t.Errorf("original link: got %q, want %q", out.Image.OriginalImageURL, want)
	}
	if generated.OriginalImageURL != "http://s3.test/private/originals/2026/10/a.jpg" {
		t.Error("stored record was modified")
	}
}

func TestList(t *testing.T) {
	h := newTestRouter(nil, nil)

	tests := []struct {
		name   string
		path   string
		status int
		total  int
		count  int
	}{
		{"product with image", "/api/products/" + generated.ProductID + "/customizations", http.StatusOK, 1, 1},
		{"other product", "/api/products/999/customizations", http.StatusOK, 0, 0},
		{"explicit limit", "/api/products/" + generated.ProductID + "/customizations?limit=1", http.StatusOK, 1, 1},
		{"zero limit", "/api/products/" + generated.ProductID + "/customizations?limit=0", http.StatusBadRequest, 0, 0},
		{"bad limit", "/api/products/" + generated.ProductID + "/customizations?limit=abc", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var out listResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Images == nil {
				t.Error("generatedImages should be an array, not null")
			}
			if out.Total != tt.total || len(out.Images) != tt.count {
				t.Errorf("got total %d and %d images, want %d and %d", out.Total, len(out.Images), tt.total, tt.count)
			}
			for _, img := range out.Images {
				if img.OriginalImageURL != "" {
					t.Errorf("original leaked: %q", img.OriginalImageURL)
				}
			}
		})
	}

	if generated.OriginalImageURL == "" {
		t.Error("stored record was modified")
	}
}

func TestGet_LookupFailure(t *testing.T) {
	c := NewCustomizations(nil, &fakeImages{err: errors.New("db down")}, &fakeStyles{}, nil)
	r := chi.NewRouter()
	r.Get("/api/customizations/{id}", c.Get)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/customizations/"+generated.ID.String(), nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "db down") {
		t.Error("cause leaked into response")
	}
}

func TestAddToCart(t *testing.T) {
	h := newTestRouter(nil, nil)

	tests := []struct {
		name    string
		id      string
		body    string
		status  int
		wantMsg string
	}{
		{"matching product", generated.ID.String(), `{"productId":"778812345"}`, http.StatusOK, msgCartAdded},
		{"no body", generated.ID.String(), ``, http.StatusOK, msgCartAdded},
		{"other product", generated.ID.String(), `{"productId":"1"}`, http.StatusBadRequest, msgWrongProduct},
		{"unknown image", uuid.NewString(), `{}`, http.StatusNotFound, msgImageNotFound},
		{"bad json", generated.ID.String(), `{`, http.StatusBadRequest, "Invalid request body."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/customizations/"+tt.id+"/cart", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			var out struct {
				Message    string            `json:"message"`
				Error      string            `json:"error"`
				Properties map[string]string `json:"properties"`
			}
			json.Unmarshal(rr.Body.Bytes(), &out)
			if tt.status != http.StatusOK {
				if out.Error != tt.wantMsg {
					t.Errorf("error: got %q, want %q", out.Error, tt.wantMsg)
				}
				return
			}
			if out.Message != tt.wantMsg {
				t.Errorf("message: got %q", out.Message)
			}
			want := map[string]string{
				"_generated_image_id":  generated.ID.String(),
				"_generated_image_url": generated.GeneratedImageURL,
				"_style":               "Portrait Royal",
			}
			for k, v := range want {
				if out.Properties[k] != v {
					t.Errorf("property %s: got %q, want %q", k, out.Properties[k], v)
				}
			}
		})
	}
}

func TestStyles(t *testing.T) {
	h := newTestRouter(nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/styles", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var out stylesResponse
	json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out.Styles) != 1 || out.Styles[0].Name != "Portrait Royal" {
		t.Errorf("styles: got %+v", out.Styles)
	}
}

func TestStyles_EmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	NewCatalog(&fakeStyles{}, nil).Styles(rr, httptest.NewRequest(http.MethodGet, "/api/styles", nil))
	if got := strings.TrimSpace(rr.Body.String()); got != `{"styles":[]}` {
		t.Errorf("body: got %s", got)
	}
}

func TestProductCustomize(t *testing.T) {
	tests := []struct {
		name      string
		products  ProductFetcher
		status    int
		wantTitle string
	}{
		{"shopify product", &fakeProducts{product: &models.Product{ID: "gid://shopify/Product/778812345", Title: "Custom Mug"}}, http.StatusOK, "Custom Mug"},
		{"no commerce platform", nil, http.StatusOK, ""},
		{"missing product", &fakeProducts{err: fmt.Errorf("wrap: %w", shopify.ErrProductNotFound)}, http.StatusNotFound, ""},
		{"upstream failure", &fakeProducts{err: errors.New("shopify: status 500")}, http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(nil, tt.products)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/778812345/customize", nil))

			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var out loaderResponse
			json.Unmarshal(rr.Body.Bytes(), &out)
			if len(out.Styles) != 1 || out.Product == nil {
				t.Fatalf("body: got %+v", out)
			}
			if out.Product.Title != tt.wantTitle {
				t.Errorf("title: got %q, want %q", out.Product.Title, tt.wantTitle)
			}
			if tt.products == nil && out.Product.ID != "778812345" {
				t.Errorf("product id: got %q", out.Product.ID)
			}
		})
	}
}

func TestProductCustomize_CatalogFailure(t *testing.T) {
	for _, products := range []ProductFetcher{nil, &fakeProducts{product: &models.Product{ID: "1", Title: "Mug"}}} {
		cat := NewCatalog(&fakeStyles{err: errors.New("db down")}, products)
		r := chi.NewRouter()
		r.Get("/api/products/{productId}/customize", cat.ProductCustomize)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/778812345/customize", nil))
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status: got %d, want 500", rr.Code)
		}
		var body map[string]any
		json.Unmarshal(rr.Body.Bytes(), &body)
		if body["code"] != "persistence_error" {
			t.Errorf("code: got %v, want persistence_error", body["code"])
		}
		if strings.Contains(rr.Body.String(), "db down") {
			t.Error("cause leaked into response")
		}
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
		want   string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"healthy", pinger{}, http.StatusOK, "ok"},
		{"database down", pinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Health(tt.db)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d", rr.Code, tt.status)
			}
			if out := decode(t, rr); out["status"] != tt.want {
				t.Errorf("status field: got %v", out["status"])
			}
		})
	}
}
