// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash-image"

// geminiProvider implements Transformer with the Gemini generateContent
// API, sending the photo as inline data next to the text prompt and asking
// for an image response.
type geminiProvider struct {
	model  string
	client *genai.Client
}

// newGemini creates a Gemini backend. The SDK client is created once and
// shared by all calls.
func newGemini(ctx context.Context, cfg ProviderConfig) (*geminiProvider, error) {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &geminiProvider{model: cfg.Model, client: client}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

// Transform sends the photo and the styled prompt in a single user turn.
// Gemini has no negative prompt field, so it is appended as an instruction.
func (p *geminiProvider) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += "\n\nAvoid: " + req.NegativePrompt
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(req.Image, req.ContentType),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if t, ok := req.Parameters["temperature"]; ok {
		config.Temperature = genai.Ptr(float32(t))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, p.classify(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     KindInvalidInput,
			Err:      fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}

	for _, c := range resp.Candidates {
		if c == nil {
			continue
		}
		switch string(c.FinishReason) {
		case "SAFETY", "PROHIBITED_CONTENT", "IMAGE_SAFETY", "BLOCKLIST":
			return nil, &Error{
				Provider: p.Name(),
				Kind:     KindInvalidInput,
				Err:      fmt.Errorf("candidate blocked: %s", c.FinishReason),
			}
		}
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			ct := part.InlineData.MIMEType
			if ct == "" {
				ct = http.DetectContentType(part.InlineData.Data)
			}
			return &TransformResult{Data: part.InlineData.Data, ContentType: ct}, nil
		}
	}

	return nil, &Error{Provider: p.Name(), Kind: KindBackend, Err: errors.New("response contained no image")}
}

// classify converts an SDK error into an *Error. API errors carry the HTTP
// status; anything else happened on the way to the server.
func (p *geminiProvider) classify(err error) *Error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return statusError(p.Name(), v.Code, strings.TrimSpace(v.Message))
		case *genai.APIError:
			return statusError(p.Name(), v.Code, strings.TrimSpace(v.Message))
		}
	}
	return transportError(p.Name(), err)
}
