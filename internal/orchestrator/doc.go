// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator turns user messages into completion requests.
//
// An Orchestrator owns one conversation. Send admits at most one exchange
// at a time; a Send that arrives while an exchange is outstanding returns
// StatusDuplicateIgnored without touching the transcript. An admitted
// exchange moves through an explicit state machine:
//
//	Idle -> Admitting -> RateLimitWaiting -> Dispatching -> AwaitingResponse
//	     -> Succeeded | RetryScheduled | Failed
//
// Retryable failures (network, 429, 5xx) are retried in a loop with
// jittered exponential backoff, up to MaxRetries times. The pending retry is
// visible through ScheduledRetry. Terminal failures leave a synthetic
// "[Error: ...]" turn in the log and can be re-attempted with Retry.
//
// Steering turns (off-topic reminder, list request hint, project excerpt)
// are scratch turns: they ride along with a single exchange and are removed
// when it ends, whatever the outcome.
//
// UI updates flow through a Sink as a single Slot that is replaced in
// place: Thinking or Retrying while the exchange runs, then Success or
// Failure exactly once.
package orchestrator
