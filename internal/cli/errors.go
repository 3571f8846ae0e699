// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/foliochat/internal/completion"
	"github.com/jeranaias/foliochat/internal/config"
	"github.com/jeranaias/foliochat/internal/contact"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitUsage    = 2
	ExitExchange = 3
)

// ExchangeError reports a chat exchange that ended in failure.
type ExchangeError struct {
	Err *completion.Error
}

func (e *ExchangeError) Error() string {
	if e.Err == nil {
		return "exchange failed"
	}
	return e.Err.DisplayText()
}

func (e *ExchangeError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// NotFoundError is returned when a named resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		exchange *ExchangeError
		cfgErrs  config.ValidateErrors
		formErr  *contact.ValidationError
	)
	switch {
	case errors.As(err, &exchange):
		return ExitExchange
	case errors.As(err, &cfgErrs), errors.As(err, &formErr):
		return ExitUsage
	default:
		return ExitError
	}
}
