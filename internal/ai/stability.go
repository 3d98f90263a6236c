// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

const defaultStabilityEngine = "stable-diffusion-xl-1024-v1-0"

// stabilityProvider implements Transformer using the Stability AI REST API
// (POST /v1/generation/{engine}/image-to-image).
type stabilityProvider struct {
	config ProviderConfig
	client *http.Client
}

// newStability creates a new Stability AI backend.
func newStability(cfg ProviderConfig) *stabilityProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stability.ai"
	}
	if cfg.Model == "" {
		cfg.Model = defaultStabilityEngine
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &stabilityProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *stabilityProvider) Name() string { return "stability" }

// Transform uploads the photo as init_image with the positive prompt at
// weight 1 and the negative prompt at weight -1. The style "strength" is
// how far to move away from the photo, so it maps to 1 - image_strength.
func (p *stabilityProvider) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("init_image", "init"+extensionFor(req.ContentType))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("multipart: %w", err)}
	}
	if _, err := fw.Write(req.Image); err != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("multipart: %w", err)}
	}

	strength := paramOr(req.Parameters, "strength", 0.65)
	fields := [][2]string{
		{"init_image_mode", "IMAGE_STRENGTH"},
		{"image_strength", formatFloat(1 - strength)},
		{"cfg_scale", formatFloat(paramOr(req.Parameters, "guidance_scale", 7))},
		{"steps", strconv.Itoa(int(paramOr(req.Parameters, "steps", 30)))},
		{"samples", "1"},
		{"text_prompts[0][text]", req.Prompt},
		{"text_prompts[0][weight]", "1"},
	}
	if req.NegativePrompt != "" {
		fields = append(fields,
			[2]string{"text_prompts[1][text]", req.NegativePrompt},
			[2]string{"text_prompts[1][weight]", "-1"},
		)
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("multipart: %w", err)}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("multipart: %w", err)}
	}

	url := p.config.BaseURL + "/v1/generation/" + p.config.Model + "/image-to-image"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, transportError(p.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr stabilityError
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Name + ": " + apiErr.Message
		}
		return nil, statusError(p.Name(), resp.StatusCode, msg)
	}

	var result stabilityResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	for _, a := range result.Artifacts {
		switch a.FinishReason {
		case "CONTENT_FILTERED":
			return nil, &Error{Provider: p.Name(), Kind: KindInvalidInput, Err: errors.New("output rejected by content filter")}
		case "ERROR":
			continue
		}
		data, err := base64.StdEncoding.DecodeString(a.Base64)
		if err != nil {
			return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: fmt.Errorf("decode artifact: %w", err)}
		}
		if len(data) == 0 {
			continue
		}
		return &TransformResult{Data: data, ContentType: http.DetectContentType(data)}, nil
	}

	return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: errors.New("response contained no image")}
}

// --- Stability API types ---

type stabilityResponse struct {
	Artifacts []stabilityArtifact `json:"artifacts"`
}

type stabilityArtifact struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
}

type stabilityError struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func paramOr(params map[string]float64, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
