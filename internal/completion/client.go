// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion provides the client for the hosted chat completion endpoint.
//
// The client performs exactly one HTTP attempt per call. Retry policy lives
// in the orchestrator, which uses the Kind carried by every returned *Error
// to decide whether to back off and try again.
package completion

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/foliochat/internal/model"
	"github.com/jeranaias/foliochat/internal/util"
)

// Configuration constants for the completion endpoint.
const (
	// DefaultBaseURL is the host serving the OpenAI-compatible endpoint.
	DefaultBaseURL = "https://text.pollinations.ai"

	// CompletionPath is the path of the chat completion endpoint.
	CompletionPath = "/openai"

	// DefaultModel is the model requested when none is configured.
	DefaultModel = "openai"

	// DefaultReferrer identifies the calling application to the endpoint.
	DefaultReferrer = "FolioChatApp"

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// maxLoggedDetail caps the error detail kept from non-2xx bodies.
	maxLoggedDetail = 300
)

// sharedTransport pools connections across clients.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// Request is the JSON body posted to the completion endpoint.
type Request struct {
	Model    string              `json:"model"`
	Messages []model.WireMessage `json:"messages"`
	Seed     int                 `json:"seed"`
	Private  bool                `json:"private"`
	Referrer string              `json:"referrer"`
}

// Message is the assistant message extracted from a successful response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the expected success envelope.
type Response struct {
	Choices []struct {
		Message *Message `json:"message"`
	} `json:"choices"`
}

// apiErrorResponse is the optional structured body of a non-2xx response.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client posts chat transcripts to the completion endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        logrus.FieldLogger
}

// NewClient creates a client for the default endpoint.
func NewClient() *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		userAgent: "foliochat/1.0",
		log:       logrus.StandardLogger(),
	}
}

// WithBaseURL sets a custom base URL for the endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log logrus.FieldLogger) *Client {
	c.log = log
	return c
}

// Endpoint returns the full URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.baseURL + CompletionPath
}

// Complete performs a single completion attempt.
//
// Every failure is returned as a *Error whose Kind classifies it:
// transport failures are KindNetwork (or KindCanceled when ctx ended),
// non-2xx statuses are classified by ClassifyStatus, and a 2xx body
// without choices[0].message is KindMalformedResponse.
func (c *Client) Complete(ctx context.Context, req Request) (*Message, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.setHeaders(httpReq)

	// Message bodies are never logged.
	log := c.log.WithFields(logrus.Fields{
		"url":      c.Endpoint(),
		"model":    req.Model,
		"messages": fmt.Sprintf("[%d messages]", len(req.Messages)),
	})
	log.Debug("completion request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCanceled, Err: ctx.Err()}
		}
		log.WithError(err).Warn("completion transport error")
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	})

	body, err := readResponse(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCanceled, Err: ctx.Err()}
		}
		log.WithError(err).Warn("completion response unreadable")
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := &Error{
			Kind:    ClassifyStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorDetail(body),
		}
		log.WithField("kind", cerr.Kind).Warn("completion HTTP error")
		return nil, cerr
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.WithError(err).Warn("completion response is not JSON")
		return nil, &Error{Kind: KindMalformedResponse, Status: resp.StatusCode, Err: err}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		log.Warn("no assistant message in completion response")
		return nil, &Error{Kind: KindMalformedResponse, Status: resp.StatusCode, Message: "missing choices[0].message"}
	}

	log.Debug("completion response")
	msg := *parsed.Choices[0].Message
	if msg.Role == "" {
		msg.Role = string(model.RoleAssistant)
	}
	return &msg, nil
}

// setHeaders sets the headers sent with every completion request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// errorDetail extracts error.message from a JSON error body, falling
// back to the raw text.
func errorDetail(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return util.TruncateRunes(apiErr.Error.Message, maxLoggedDetail)
	}
	return util.TruncateRunes(strings.TrimSpace(string(body)), maxLoggedDetail)
}
