// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"errors"
	"math"
	"time"

	"github.com/jeranaias/foliochat/internal/completion"
)

// Defaults for the request policy.
const (
	DefaultMinInterval    = 1500 * time.Millisecond
	DefaultBaseRetryDelay = 1 * time.Second
	DefaultMaxRetryDelay  = 10 * time.Second
	DefaultMaxRetries     = 3

	// seedRange bounds the random seed sent with every request.
	seedRange = 10000

	jitterMin  = 0.8
	jitterSpan = 0.4
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNothingToRetry is returned by Retry when the last exchange did not fail.
	ErrNothingToRetry = errors.New("no failed exchange to retry")

	// ErrBusy is returned by Reset while an exchange is in flight.
	ErrBusy = errors.New("an exchange is in progress")
)

// =============================================================================
// STATE
// =============================================================================

// State is the orchestrator's position in the exchange state machine.
type State int

const (
	StateIdle State = iota
	StateAdmitting
	StateRateLimitWaiting
	StateDispatching
	StateAwaitingResponse
	StateRetryScheduled
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdmitting:
		return "admitting"
	case StateRateLimitWaiting:
		return "rate_limit_waiting"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends an exchange.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateSucceeded || s == StateFailed
}

// RetryPlan describes the retry currently waiting on its backoff delay.
type RetryPlan struct {
	Attempt int
	Delay   time.Duration
	Due     time.Time
	Cause   completion.Kind
}

// =============================================================================
// OUTCOME
// =============================================================================

// Status is the result of a Send or Retry call.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusDuplicateIgnored
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusDuplicateIgnored:
		return "duplicate_ignored"
	default:
		return "unknown"
	}
}

// Outcome reports how an exchange ended.
type Outcome struct {
	Status   Status
	Exchange int
	// Reply is the assistant content on success.
	Reply string
	// Err classifies a failure.
	Err      *completion.Error
	Attempts int
}

// =============================================================================
// UI SLOT
// =============================================================================

// SlotKind is what the exchange's message slot currently shows.
type SlotKind int

const (
	SlotThinking SlotKind = iota
	SlotRetrying
	SlotSuccess
	SlotFailure
)

// String returns the slot kind name.
func (k SlotKind) String() string {
	switch k {
	case SlotThinking:
		return "thinking"
	case SlotRetrying:
		return "retrying"
	case SlotSuccess:
		return "success"
	case SlotFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Slot is the single message slot of one exchange. The UI replaces the
// slot's content in place on every update.
type Slot struct {
	Exchange int
	Kind     SlotKind
	// Text is markdown on success and plain text otherwise.
	Text string
	// HTML is the sanitized rendering of Text on success.
	HTML string
	// RetryAvailable is set on failures that can be re-attempted with Retry.
	RetryAvailable bool
}

// Sink receives slot updates. Placeholder is called for Thinking and
// Retrying, Resolve exactly once per exchange with Success or Failure.
type Sink interface {
	Placeholder(Slot)
	Resolve(Slot)
}

type nopSink struct{}

func (nopSink) Placeholder(Slot) {}
func (nopSink) Resolve(Slot)     {}

// =============================================================================
// BACKOFF
// =============================================================================

// Jitter maps u in [0,1) to a backoff multiplier in [0.8, 1.2).
func Jitter(u float64) float64 {
	return jitterMin + jitterSpan*u
}

// Backoff returns the delay before retry number retry (1-based) using the
// default base and cap: min(10s, 1s * 2^retry * jitter).
func Backoff(retry int, jitter float64) time.Duration {
	return backoff(DefaultBaseRetryDelay, DefaultMaxRetryDelay, retry, jitter)
}

func backoff(base, maxDelay time.Duration, retry int, jitter float64) time.Duration {
	d := float64(base) * math.Pow(2, float64(retry)) * jitter
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
