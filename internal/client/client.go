// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package client talks to the customization API. It implements the
// wizard's Submitter and CartAdder so a wizard.Machine can be driven
// against a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pawtrait/internal/models"
	"pawtrait/internal/wizard"
)

// Options tunes the underlying HTTP client.
type Options struct {
	Timeout    time.Duration // whole-request timeout, default 3m
	PreferIPv4 bool
}

// Client is a customization API client. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts Options) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(opts),
	}
}

func newHTTPClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		// Generation can take a while before the first response byte.
		ResponseHeaderTimeout: 150 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Timeout: timeout, Transport: transport}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// UserMessage returns the server's customer-facing message.
func (e *APIError) UserMessage() string { return e.Message }

// Retryable reports whether the server marked the failure as transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
}

type submitResponse struct {
	Success           bool   `json:"success"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	GeneratedImageID  string `json:"generatedImageId"`
	Message           string `json:"message"`
	Error             string `json:"error"`
	Code              string `json:"code"`
}

type cartResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Properties map[string]string `json:"properties"`
	Error      string            `json:"error"`
	Code       string            `json:"code"`
}

type stylesResponse struct {
	Styles []models.Style `json:"styles"`
}

// Submit uploads the photo with the style and product ids. The multipart
// body is streamed through a pipe rather than buffered.
func (c *Client) Submit(ctx context.Context, sub wizard.Submission) (*wizard.Outcome, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeSubmission(mw, sub))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/customizations", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("submit request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out submitResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &wizard.Outcome{
		GeneratedImageID:  out.GeneratedImageID,
		GeneratedImageURL: out.GeneratedImageURL,
		Message:           out.Message,
	}, nil
}

func writeSubmission(mw *multipart.Writer, sub wizard.Submission) error {
	name := sub.Photo.Name
	if name == "" {
		name = "photo"
	}
	fw, err := mw.CreateFormFile("petPhoto", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(sub.Photo.Data); err != nil {
		return err
	}
	if err := mw.WriteField("styleId", sub.StyleID); err != nil {
		return err
	}
	if err := mw.WriteField("productId", sub.ProductID); err != nil {
		return err
	}
	return mw.Close()
}

// AddToCart asks the server for the line-item properties binding the
// generated image to the product.
func (c *Client) AddToCart(ctx context.Context, productID, generatedImageID string) (*wizard.CartConfirmation, error) {
	body, err := json.Marshal(map[string]string{"productId": productID})
	if err != nil {
		return nil, fmt.Errorf("cart marshal: %w", err)
	}

	u := c.baseURL + "/api/customizations/" + url.PathEscape(generatedImageID) + "/cart"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out cartResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &wizard.CartConfirmation{Message: out.Message, Properties: out.Properties}, nil
}

// Styles lists the style catalog.
func (c *Client) Styles(ctx context.Context) ([]models.Style, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/styles", nil)
	if err != nil {
		return nil, fmt.Errorf("styles request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var out stylesResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Styles, nil
}

// do sends req and decodes a JSON body into out. Non-2xx responses become
// *APIError using the server's {error, code} envelope when present.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, &env) == nil {
			apiErr.Code, apiErr.Message = env.Code, env.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
