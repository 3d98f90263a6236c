// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers serves the customization JSON API. Every failure is
// reported as {success: false, error, code} with a customer-safe message.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pawtrait/internal/customize"
)

// Error codes that do not come from customize.Kind.
const (
	codeUnavailable = "unavailable"
	codeInternal    = "internal_error"
	codeUpstream    = "upstream_error"
)

const msgInternal = "Something went wrong. Please try again."

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeFailure writes the error envelope.
func writeFailure(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, failureResponse{Error: msg, Code: code})
}

// writeError maps a customization error to its HTTP status. Causes are
// logged by the service and never leave the server.
func writeError(w http.ResponseWriter, err error) {
	var cerr *customize.Error
	if !errors.As(err, &cerr) {
		slog.Error("unclassified handler error", "error", err)
		writeFailure(w, http.StatusInternalServerError, msgInternal, codeInternal)
		return
	}
	writeFailure(w, statusFor(cerr), cerr.Message, cerr.Kind.String())
}

func statusFor(err *customize.Error) int {
	switch err.Kind {
	case customize.KindValidation:
		if errors.Is(err, customize.ErrPhotoTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case customize.KindNotFound:
		return http.StatusNotFound
	case customize.KindGeneration:
		if err.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
