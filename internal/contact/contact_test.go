// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package contact

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func validSubmission() Submission {
	return Submission{
		Name:    "Ada",
		Email:   "ada@example.com",
		Phone:   "+1 555 0100",
		Message: "Loved the flood prediction project!",
	}
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		ServiceID:  "service_x",
		TemplateID: "template_y",
		PublicKey:  "pk_z",
		APIURL:     url,
	}).WithLogger(quietLogger())
}

func TestSubmission_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Submission)
		field string
	}{
		{"missing name", func(s *Submission) { s.Name = " " }, "name"},
		{"missing email", func(s *Submission) { s.Email = "" }, "email"},
		{"bad email", func(s *Submission) { s.Email = "not-an-email" }, "email"},
		{"missing message", func(s *Submission) { s.Message = "\n" }, "message"},
		{"long message", func(s *Submission) { s.Message = strings.Repeat("a", maxMessageLen+1) }, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.edit(&s)
			var verr *ValidationError
			require.True(t, errors.As(s.Validate(), &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	s := validSubmission()
	s.Phone = ""
	assert.NoError(t, s.Validate(), "phone is optional")
}

func TestSend_PostsEmailJSPayload(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	require.NoError(t, newTestClient(server.URL).Send(context.Background(), validSubmission()))

	assert.Equal(t, "service_x", got["service_id"])
	assert.Equal(t, "template_y", got["template_id"])
	assert.Equal(t, "pk_z", got["user_id"])
	params, ok := got["template_params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", params["from_name"])
	assert.Equal(t, "ada@example.com", params["gmail"])
	assert.Equal(t, "+1 555 0100", params["phone"])
	assert.Equal(t, "Loved the flood prediction project!", params["message"])
}

func TestSend_RelayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("The user ID is invalid"))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Send(context.Background(), validSubmission())
	var rerr *RelayError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusBadRequest, rerr.Status)
	assert.Equal(t, "The user ID is invalid", rerr.Body)
}

func TestSend_ValidationBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	s := validSubmission()
	s.Email = "nope"
	err := newTestClient(server.URL).Send(context.Background(), s)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.False(t, called)
}

func TestSend_NotConfigured(t *testing.T) {
	c := NewClient(Config{ServiceID: "s"})
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.Send(context.Background(), validSubmission()), ErrNotConfigured)
}

func TestSendAsync_ReportsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	done := make(chan error, 1)
	newTestClient(server.URL).SendAsync(validSubmission(), func(err error) { done <- err })

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("SendAsync did not complete")
	}
}
