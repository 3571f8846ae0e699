// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contact relays contact-form submissions to the owner through
// the EmailJS REST API.
package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/foliochat/internal/util"
)

const (
	// DefaultAPIURL is the EmailJS send endpoint.
	DefaultAPIURL = "https://api.emailjs.com/api/v1.0/email/send"

	// DefaultTimeout bounds one relay request.
	DefaultTimeout = 15 * time.Second

	maxErrorBody  = 4096
	maxMessageLen = 5000
)

// ErrNotConfigured is returned when service, template or public key is missing.
var ErrNotConfigured = errors.New("contact relay is not configured")

// =============================================================================
// TYPES
// =============================================================================

// Submission is one contact-form entry.
type Submission struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// ValidationError reports an unusable submission field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RelayError is returned when EmailJS rejects a submission.
type RelayError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	return fmt.Sprintf("contact relay failed (HTTP %d): %s", e.Status, e.Body)
}

// Validate checks required fields and the email address.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(s.Email) == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "not a valid address"}
	}
	msg := strings.TrimSpace(s.Message)
	if msg == "" {
		return &ValidationError{Field: "message", Reason: "required"}
	}
	if len([]rune(msg)) > maxMessageLen {
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("longer than %d characters", maxMessageLen)}
	}
	return nil
}

// Config identifies the EmailJS service and template.
type Config struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	APIURL     string
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	FromName string `json:"from_name"`
	Gmail    string `json:"gmail"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client posts submissions to EmailJS.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient creates a relay client.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logrus.StandardLogger(),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log logrus.FieldLogger) *Client {
	c.log = log
	return c
}

// Configured reports whether service, template and key are all set.
func (c *Client) Configured() bool {
	return c.cfg.ServiceID != "" && c.cfg.TemplateID != "" && c.cfg.PublicKey != ""
}

// Send validates and relays s.
func (c *Client) Send(ctx context.Context, s Submission) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := s.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(sendRequest{
		ServiceID:  c.cfg.ServiceID,
		TemplateID: c.cfg.TemplateID,
		UserID:     c.cfg.PublicKey,
		TemplateParams: templateParams{
			FromName: strings.TrimSpace(s.Name),
			Gmail:    strings.TrimSpace(s.Email),
			Phone:    strings.TrimSpace(s.Phone),
			Message:  strings.TrimSpace(s.Message),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RelayError{Status: resp.StatusCode, Body: util.TruncateRunes(strings.TrimSpace(string(data)), 200)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	// Only the sender's name is logged; contact details stay out of logs.
	c.log.WithField("from", s.Name).Info("contact message relayed")
	return nil
}

// SendAsync relays s in the background. done, if non-nil, receives the
// result; failures are logged either way.
func (c *Client) SendAsync(s Submission, done func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		err := c.Send(ctx, s)
		if err != nil {
			c.log.WithError(err).Warn("contact relay failed")
		}
		if done != nil {
			done(err)
		}
	}()
}
