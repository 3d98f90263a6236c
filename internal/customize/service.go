// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package customize implements the customization request lifecycle: a pet
// photo and a style go in, a generated artwork stored in object storage
// and recorded in the database comes out. The service holds no
// per-request state and is safe for concurrent use.
package customize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pawtrait/internal/ai"
	"pawtrait/internal/imaging"
	"pawtrait/internal/models"
	"pawtrait/internal/storage"
)

// SuccessMessage is returned with every successful submission.
const SuccessMessage = "Image generated successfully!"

// ErrPhotoTooLarge is the cause of the validation error returned for photos
// above the configured size limit.
var ErrPhotoTooLarge = errors.New("photo exceeds size limit")

// StyleCatalog resolves styles by id or by unique name. Lookups return
// (nil, nil) when no style matches.
type StyleCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Style, error)
	FindByName(ctx context.Context, name string) (*models.Style, error)
}

// ImageRecorder persists generated image records.
type ImageRecorder interface {
	Create(ctx context.Context, g *models.GeneratedImage) (*models.GeneratedImage, error)
}

// Generator is the image-to-image backend, usually *ai.Registry.
type Generator interface {
	Transform(ctx context.Context, req ai.TransformRequest) (*ai.TransformResult, error)
}

// ObjectStore holds original photos (private bucket) and generated images
// (public bucket), usually *storage.Client.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, data []byte) error
	Delete(ctx context.Context, bucket, key string) error
	FileURL(key string) string
	PrivateURL(key string) string
	PublicBucket() string
	PrivateBucket() string
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	MaxUploadBytes int64         // default 10 MiB
	Subject        string        // substituted for {animalType}, default "pet"
	Timeout        time.Duration // per generation attempt, default 90s
	Retries        uint64        // extra attempts for retry-eligible failures
	RetryBase      time.Duration // first backoff interval, default 500ms
	Concurrency    int64         // simultaneous generation calls, default 4
	MaxInputSide   int           // photos are downscaled to this, default 1536
	DecodeBudget   int64         // pixels decoded at once across submissions, default 2*imaging.MaxPixels
}

func (o *Options) setDefaults() {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.Subject == "" {
		o.Subject = "pet"
	}
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.MaxInputSide <= 0 {
		o.MaxInputSide = 1536
	}
	if o.DecodeBudget <= 0 {
		o.DecodeBudget = 2 * imaging.MaxPixels
	}
}

// Submission is one customization request.
type Submission struct {
	Photo     []byte
	StyleID   string `validate:"required,max=255"`
	ProductID string `validate:"required,max=255,printascii"`
}

// Result is returned for a successful submission.
type Result struct {
	Image   *models.GeneratedImage
	Style   *models.Style
	Message string
}

// Service runs submissions end to end.
type Service struct {
	styles    StyleCatalog
	images    ImageRecorder
	gen       Generator
	objects   ObjectStore
	opts      Options
	sem       *semaphore.Weighted
	decodeSem *semaphore.Weighted
	validate  *validator.Validate
	now       func() time.Time
}

// NewService wires a Service from its collaborators.
func NewService(styles StyleCatalog, images ImageRecorder, gen Generator, objects ObjectStore, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		styles:    styles,
		images:    images,
		gen:       gen,
		objects:   objects,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.Concurrency),
		decodeSem: semaphore.NewWeighted(opts.DecodeBudget),
		validate:  validator.New(),
		now:       time.Now,
	}
}

// MaxUploadBytes returns the effective photo size limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.opts.MaxUploadBytes
}

// Submit validates the submission, resolves the style, generates the
// artwork and persists it. Every error is a *Error. No external call is
// made before validation passes, and nothing is persisted unless both the
// generation and the record insert succeed.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	info, err := s.validateSubmission(sub)
	if err != nil {
		return nil, err
	}

	input, inputType, err := s.decode(ctx, sub.Photo, info)
	if err != nil {
		return nil, err
	}

	style, err := s.resolveStyle(ctx, sub.StyleID)
	if err != nil {
		return nil, err
	}

	req := ai.TransformRequest{
		Image:          input,
		ContentType:    inputType,
		Prompt:         style.Prompt(s.opts.Subject),
		NegativePrompt: style.NegativePrompt,
		Parameters:     style.Parameters,
	}

	start := time.Now()
	out, attempts, err := s.generate(ctx, req)
	if err != nil {
		retryable := ai.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
		slog.Warn("generation failed",
			"style", style.Name,
			"product", sub.ProductID,
			"attempts", attempts,
			"retryable", retryable,
			"error", err,
		)
		return nil, generationError(retryable, err)
	}

	rec, err := s.persist(ctx, sub, info.ContentType, style, out)
	if err != nil {
		slog.Error("persisting generated image failed", "style", style.Name, "product", sub.ProductID, "error", err)
		return nil, persistenceError(err)
	}

	slog.Info("customization generated",
		"id", rec.ID,
		"style", style.Name,
		"product", rec.ProductID,
		"attempts", attempts,
		"duration", time.Since(start),
	)

	return &Result{Image: rec, Style: style, Message: SuccessMessage}, nil
}

func (s *Service) validateSubmission(sub Submission) (imaging.Info, error) {
	if len(sub.Photo) == 0 || sub.StyleID == "" || sub.ProductID == "" {
		return imaging.Info{}, validationError("Please provide a photo and a style.", nil)
	}
	if err := s.validate.Struct(sub); err != nil {
		return imaging.Info{}, validationError("The style or product identifier is invalid.", err)
	}
	if int64(len(sub.Photo)) > s.opts.MaxUploadBytes {
		return imaging.Info{}, validationError(
			fmt.Sprintf("The photo must be smaller than %d MB.", s.opts.MaxUploadBytes>>20),
			ErrPhotoTooLarge,
		)
	}

	info, err := imaging.Inspect(sub.Photo)
	switch {
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return imaging.Info{}, validationError("The photo must be a JPEG, PNG or WebP image.", err)
	case errors.Is(err, imaging.ErrTooManyPixels):
		return imaging.Info{}, validationError("The photo dimensions are too large.", err)
	case err != nil:
		return imaging.Info{}, validationError("The photo could not be read.", err)
	}
	return info, nil
}

// decode fully decodes the photo and downscales it for the backend. Each
// decode reserves its pixel count from the shared budget, so large photos
// wait for a slot instead of growing memory without bound.
func (s *Service) decode(ctx context.Context, photo []byte, info imaging.Info) ([]byte, string, error) {
	weight := min(int64(info.Width)*int64(info.Height), s.opts.DecodeBudget)
	if err := s.decodeSem.Acquire(ctx, weight); err != nil {
		return nil, "", generationError(true, err)
	}
	defer s.decodeSem.Release(weight)

	out, contentType, err := imaging.FitWithin(photo, info, s.opts.MaxInputSide)
	if err != nil {
		return nil, "", validationError("The photo could not be read.", err)
	}
	return out, contentType, nil
}

// resolveStyle looks the style up by UUID, or by unique name when the
// identifier is not a UUID.
func (s *Service) resolveStyle(ctx context.Context, ref string) (*models.Style, error) {
	var (
		style *models.Style
		err   error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		style, err = s.styles.FindByID(ctx, id)
	} else {
		style, err = s.styles.FindByName(ctx, ref)
	}
	if err != nil {
		return nil, persistenceError(fmt.Errorf("style lookup %q: %w", ref, err))
	}
	if style == nil {
		return nil, notFoundError("The selected style does not exist.")
	}
	return style, nil
}

// generate calls the backend under the concurrency limit, retrying
// retry-eligible failures with exponential backoff. Each attempt gets its
// own timeout; the caller's context bounds the whole sequence.
func (s *Service) generate(ctx context.Context, req ai.TransformRequest) (*ai.TransformResult, int, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer s.sem.Release(1)

	var (
		out      *ai.TransformResult
		attempts int
	)
	backoff := retry.WithMaxRetries(s.opts.Retries, retry.WithJitterPercent(20, retry.NewExponential(s.opts.RetryBase)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		res, err := s.gen.Transform(actx, req)
		if err != nil {
			if ctx.Err() == nil && ai.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if res == nil || len(res.Data) == 0 {
			return &ai.Error{Kind: ai.KindBackend, Err: errors.New("empty result")}
		}
		out = res
		return nil
	})
	return out, attempts, err
}

// persist uploads the original and the generated image, then records the
// result. If any step fails, objects already uploaded are removed.
func (s *Service) persist(ctx context.Context, sub Submission, originalType string, style *models.Style, out *ai.TransformResult) (*models.GeneratedImage, error) {
	now := s.now()
	originalKey := storage.ObjectKey("originals", originalType, now)
	generatedKey := storage.ObjectKey("generated", out.ContentType, now)

	type object struct{ bucket, key string }
	uploaded := make(chan object, 2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.objects.Upload(gctx, s.objects.PrivateBucket(), originalKey, originalType, sub.Photo); err != nil {
			return err
		}
		uploaded <- object{s.objects.PrivateBucket(), originalKey}
		return nil
	})
	g.Go(func() error {
		if err := s.objects.Upload(gctx, s.objects.PublicBucket(), generatedKey, out.ContentType, out.Data); err != nil {
			return err
		}
		uploaded <- object{s.objects.PublicBucket(), generatedKey}
		return nil
	})
	err := g.Wait()
	close(uploaded)

	var rec *models.GeneratedImage
	if err == nil {
		rec, err = s.images.Create(ctx, &models.GeneratedImage{
			OriginalImageURL:  s.objects.PrivateURL(originalKey),
			GeneratedImageURL: s.objects.FileURL(generatedKey),
			StyleID:           style.ID,
			ProductID:         sub.ProductID,
		})
	}
	if err != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		for obj := range uploaded {
			if derr := s.objects.Delete(cctx, obj.bucket, obj.key); derr != nil {
				slog.Warn("cleanup of uploaded object failed", "bucket", obj.bucket, "key", obj.key, "error", derr)
			}
		}
		return nil, err
	}
	return rec, nil
}
