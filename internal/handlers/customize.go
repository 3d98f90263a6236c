// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pawtrait/internal/customize"
	"pawtrait/internal/models"
)

const (
	// formOverhead covers multipart boundaries and the text fields.
	formOverhead = 64 << 10
	maxFieldLen  = 1 << 10

	originalLinkTTL = 15 * time.Minute

	defaultListLimit = 12
	maxListLimit     = 50

	msgMissingInput    = "Please provide a photo and a style."
	msgStorageDisabled = "Image storage is not configured."
	msgImageNotFound   = "The generated image does not exist."
	msgCartAdded       = "Product added to cart!"
	msgWrongProduct    = "This image was generated for a different product."
)

// Submitter runs one customization request.
type Submitter interface {
	Submit(ctx context.Context, sub customize.Submission) (*customize.Result, error)
	MaxUploadBytes() int64
}

// ImageFinder loads recorded generations. FindByID returns (nil, nil) if
// absent.
type ImageFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.GeneratedImage, error)
	ListByProduct(ctx context.Context, productID string, limit int) ([]models.GeneratedImage, error)
	CountByProduct(ctx context.Context, productID string) (int, error)
}

// StyleFinder resolves the style of a recorded generation.
type StyleFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Style, error)
}

// OriginalLinker hands out temporary links to originals kept in the
// private bucket.
type OriginalLinker interface {
	ExtractPrivateKey(rawURL string) (string, bool)
	PresignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	PrivateBucket() string
}

// Customizations serves submission, lookup and cart attachment of
// generated images.
type Customizations struct {
	service Submitter
	images  ImageFinder
	styles  StyleFinder
	links   OriginalLinker
}

// NewCustomizations creates the handler group. service is nil when object
// storage is not configured; links may be nil.
func NewCustomizations(service Submitter, images ImageFinder, styles StyleFinder, links OriginalLinker) *Customizations {
	return &Customizations{service: service, images: images, styles: styles, links: links}
}

type submitResponse struct {
	Success           bool   `json:"success"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	GeneratedImageID  string `json:"generatedImageId"`
	Message           string `json:"message"`
}

// Create handles POST /api/customizations. The multipart body is read as a
// stream; the photo part is bounded by the service's upload limit.
func (h *Customizations) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeFailure(w, http.StatusServiceUnavailable, msgStorageDisabled, codeUnavailable)
		return
	}

	limit := h.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	sub, err := readSubmission(r, limit)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, customize.ErrPhotoTooLarge), errors.As(err, &maxErr):
			writeFailure(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("The photo must be smaller than %d MB.", limit>>20),
				customize.KindValidation.String())
		default:
			slog.Debug("unreadable customization form", "error", err)
			writeFailure(w, http.StatusBadRequest, msgMissingInput, customize.KindValidation.String())
		}
		return
	}

	res, err := h.service.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Success:           true,
		GeneratedImageURL: res.Image.GeneratedImageURL,
		GeneratedImageID:  res.Image.ID.String(),
		Message:           res.Message,
	})
}

// readSubmission walks the multipart parts. Missing fields are left empty
// for the service to reject.
func readSubmission(r *http.Request, limit int64) (customize.Submission, error) {
	var sub customize.Submission

	mr, err := r.MultipartReader()
	if err != nil {
		return sub, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return sub, nil
		}
		if err != nil {
			return sub, err
		}

		switch part.FormName() {
		case "petPhoto":
			sub.Photo, err = readPart(part, limit)
		case "styleId":
			sub.StyleID, err = readField(part)
		case "productId":
			sub.ProductID, err = readField(part)
		default:
			_, err = io.Copy(io.Discard, part)
		}
		part.Close()
		if err != nil {
			return sub, err
		}
	}
}

func readPart(part *multipart.Part, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, customize.ErrPhotoTooLarge
	}
	return data, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldLen))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

type imageResponse struct {
	Success bool                   `json:"success"`
	Image   *models.GeneratedImage `json:"generatedImage"`
}

// Get handles GET /api/customizations/{id}. The stored original URL is
// replaced by a short-lived link, or dropped when none can be made.
func (h *Customizations) Get(w http.ResponseWriter, r *http.Request) {
	img, ok := h.loadImage(w, r)
	if !ok {
		return
	}

	out := *img
	out.OriginalImageURL = h.originalLink(r.Context(), img.OriginalImageURL)
	writeJSON(w, http.StatusOK, imageResponse{Success: true, Image: &out})
}

type listResponse struct {
	Success bool                    `json:"success"`
	Total   int                     `json:"total"`
	Images  []models.GeneratedImage `json:"generatedImages"`
}

// List handles GET /api/products/{productId}/customizations, returning the
// most recent generations for the product. Originals are never linked here.
func (h *Customizations) List(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeFailure(w, http.StatusBadRequest, "Invalid limit.", customize.KindValidation.String())
			return
		}
		limit = min(n, maxListLimit)
	}

	var (
		items []models.GeneratedImage
		total int
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		items, err = h.images.ListByProduct(gctx, productID, limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.images.CountByProduct(gctx, productID)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("listing generated images failed", "product", productID, "error", err)
		writeFailure(w, http.StatusInternalServerError, msgInternal, customize.KindPersistence.String())
		return
	}

	if items == nil {
		items = []models.GeneratedImage{}
	}
	for i := range items {
		items[i].OriginalImageURL = ""
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Total: total, Images: items})
}

func (h *Customizations) originalLink(ctx context.Context, stored string) string {
	if h.links == nil {
		return ""
	}
	key, ok := h.links.ExtractPrivateKey(stored)
	if !ok {
		return ""
	}
	link, err := h.links.PresignedURL(ctx, h.links.PrivateBucket(), key, originalLinkTTL)
	if err != nil {
		slog.Warn("presigning original failed", "key", key, "error", err)
		return ""
	}
	return link
}

type cartRequest struct {
	ProductID string `json:"productId"`
}

type cartResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Properties map[string]string `json:"properties"`
}

// AddToCart handles POST /api/customizations/{id}/cart. It returns the
// line-item properties that bind the generated image to the product; the
// storefront performs the cart mutation itself.
func (h *Customizations) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldLen)).Decode(&req); err != nil && err != io.EOF {
			writeFailure(w, http.StatusBadRequest, "Invalid request body.", customize.KindValidation.String())
			return
		}
	}

	img, ok := h.loadImage(w, r)
	if !ok {
		return
	}
	if req.ProductID != "" && req.ProductID != img.ProductID {
		writeFailure(w, http.StatusBadRequest, msgWrongProduct, customize.KindValidation.String())
		return
	}

	props := map[string]string{
		"_generated_image_id":  img.ID.String(),
		"_generated_image_url": img.GeneratedImageURL,
	}
	style, err := h.styles.FindByID(r.Context(), img.StyleID)
	if err != nil {
		slog.Warn("style lookup for cart failed", "style_id", img.StyleID, "error", err)
	}
	if style != nil {
		props["_style"] = style.Name
	}

	slog.Info("generated image attached to cart", "id", img.ID, "product", img.ProductID)
	writeJSON(w, http.StatusOK, cartResponse{Success: true, Message: msgCartAdded, Properties: props})
}

// loadImage resolves the {id} URL parameter, writing the failure response
// itself when the image cannot be returned.
func (h *Customizations) loadImage(w http.ResponseWriter, r *http.Request) (*models.GeneratedImage, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, http.StatusNotFound, msgImageNotFound, customize.KindNotFound.String())
		return nil, false
	}

	img, err := h.images.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("generated image lookup failed", "id", id, "error", err)
		writeFailure(w, http.StatusInternalServerError, msgInternal, customize.KindPersistence.String())
		return nil, false
	}
	if img == nil {
		writeFailure(w, http.StatusNotFound, msgImageNotFound, customize.KindNotFound.String())
		return nil, false
	}
	return img, true
}
