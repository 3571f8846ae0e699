// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind is the closed set of ways a completion exchange can fail.
type Kind int

const (
	KindNetwork Kind = iota
	KindRateLimited
	KindServerError
	KindBadRequest
	KindAuthFailed
	KindNotFound
	KindMalformedResponse
	KindOther
	KindCanceled
)

// String returns the identifier of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindBadRequest:
		return "bad_request"
	case KindAuthFailed:
		return "auth_failed"
	case KindNotFound:
		return "not_found"
	case KindMalformedResponse:
		return "malformed_response"
	case KindOther:
		return "other"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether the kind is transient.
// Only network failures, 429 and 5xx are retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimited, KindServerError:
		return true
	}
	return false
}

// RetryingText is the placeholder shown while a retry of this kind is pending.
// Seconds are rounded to the nearest whole second.
func (k Kind) RetryingText(delay time.Duration) string {
	secs := int(math.Round(delay.Seconds()))
	switch k {
	case KindRateLimited:
		return fmt.Sprintf("Rate limited. Retrying in %d seconds...", secs)
	case KindServerError:
		return fmt.Sprintf("Temporary server issue. Retrying in %d seconds...", secs)
	default:
		return fmt.Sprintf("Connection issue. Retrying in %d seconds...", secs)
	}
}

// ClassifyStatus maps a non-2xx HTTP status to a kind.
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status < 600:
		return KindServerError
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailed
	case status == http.StatusNotFound:
		return KindNotFound
	default:
		return KindOther
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the single error type returned by Client.Complete.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // server-provided detail, for logs only
	Err     error  // underlying transport or decode error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("completion %s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("completion %s (HTTP %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("completion %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("completion %s", e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// DisplayText returns the terminal, user-facing message for the failure.
func (e *Error) DisplayText() string {
	switch e.Kind {
	case KindNetwork:
		return "Network connection error. Please check your connection and try again."
	case KindRateLimited:
		return "Too many requests. Please wait a few minutes and try again."
	case KindServerError:
		return "The server is having issues. Please try again later."
	case KindBadRequest:
		return fmt.Sprintf("Invalid request. The message might be too long or malformed. (Error %d)", e.Status)
	case KindAuthFailed:
		return fmt.Sprintf("Authentication failed. Please refresh the page. (Error %d)", e.Status)
	case KindNotFound:
		return fmt.Sprintf("The chat service is currently unavailable. (Error %d)", e.Status)
	case KindMalformedResponse:
		return "Error: Could not understand AI response."
	case KindCanceled:
		return "Request cancelled."
	default:
		return fmt.Sprintf("An error occurred. Please try again. (Error %d)", e.Status)
	}
}

// TranscriptTag is the label recorded in the synthetic "[Error: <tag>]" turn.
func (e *Error) TranscriptTag() string {
	switch e.Kind {
	case KindNetwork:
		return "API connection"
	case KindRateLimited:
		return "Rate limited"
	case KindServerError:
		return "Server error"
	case KindMalformedResponse:
		return "Invalid AI response"
	case KindCanceled:
		return "Cancelled"
	default:
		return fmt.Sprintf("%d", e.Status)
	}
}

// AsError extracts a *Error from err. Errors that did not come from the
// client are treated as network failures, and context cancellation as Canceled.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}
