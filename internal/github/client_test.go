// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package github

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reposJSON = `[
  {"name":"Flood-Prediction","description":"KNN flood forecasting","language":"Python",
   "stargazers_count":4,"forks_count":1,"updated_at":"2025-03-01T10:00:00Z",
   "html_url":"https://github.com/sridhar1805/Flood-Prediction"},
  {"name":"House-Rent","description":null,"language":null,
   "stargazers_count":0,"forks_count":0,"updated_at":"2025-02-01T10:00:00Z",
   "html_url":""},
  {"name":null}
]`

const commitsJSON = `[
  {"sha":"0123456789abcdef","html_url":"https://github.com/c/1",
   "commit":{"message":"Add model training\n\nlong body","author":{"name":"Sri","date":"2025-03-01T09:00:00Z"}}},
  {"sha":"abc","html_url":"https://github.com/c/2",
   "commit":{"message":"Fix typo","author":{"name":"Sri","date":"2025-02-28T09:00:00Z"}}}
]`

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(url string) *Client {
	return NewClient("").WithBaseURL(url).WithRateLimit(0, 0).WithLogger(quietLogger())
}

func TestRepositories_ParsesAndSkipsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/sridhar1805/repos", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(reposJSON))
	}))
	defer server.Close()

	repos, err := newTestClient(server.URL).Repositories(context.Background(), "sridhar1805", 10)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "Flood-Prediction", repos[0].Name)
	assert.Equal(t, "Python", repos[0].Language)
	assert.Equal(t, 4, repos[0].Stars)
	assert.Equal(t, 1, repos[0].Forks)
	assert.Equal(t, "", repos[1].Description)
}

func TestRecentCommits_ShortensShaAndMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/sridhar1805/Flood-Prediction/commits", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		w.Write([]byte(commitsJSON))
	}))
	defer server.Close()

	commits, err := newTestClient(server.URL).RecentCommits(context.Background(), "sridhar1805", "Flood-Prediction", 3)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "0123456", commits[0].SHA)
	assert.Equal(t, "Add model training", commits[0].Message)
	assert.Equal(t, "Sri", commits[0].Author)
	assert.Equal(t, "abc", commits[1].SHA)
}

func TestClient_SendsTokenWhenConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient("ghp_test").WithBaseURL(server.URL).WithRateLimit(0, 0).WithLogger(quietLogger())
	_, err := c.Repositories(context.Background(), "u", 1)
	require.NoError(t, err)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Repositories(context.Background(), "u", 5)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "API rate limit exceeded", apiErr.Message)
}

func TestClient_NonArrayPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Repositories(context.Background(), "u", 5)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestContributionSummary_DegradesFailedCommitFetch(t *testing.T) {
	var commitCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/users/"):
			w.Write([]byte(reposJSON))
		case strings.Contains(r.URL.Path, "/House-Rent/"):
			commitCalls.Add(1)
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"Git Repository is empty."}`))
		default:
			commitCalls.Add(1)
			w.Write([]byte(commitsJSON))
		}
	}))
	defer server.Close()

	summary, err := newTestClient(server.URL).ContributionSummary(context.Background(), "sridhar1805", 10)
	require.NoError(t, err)

	assert.Equal(t, int32(2), commitCalls.Load())
	assert.Equal(t, "sridhar1805", summary.Username)
	assert.Equal(t, 2, summary.TotalRepositories)
	require.Len(t, summary.Repositories, 2)

	flood := summary.Repositories[0]
	assert.Equal(t, "Flood-Prediction", flood.Name)
	assert.Len(t, flood.RecentCommits, 2)

	rent := summary.Repositories[1]
	assert.Equal(t, "House-Rent", rent.Name)
	assert.Empty(t, rent.RecentCommits)
	assert.Equal(t, "No description", rent.Description)
	assert.Equal(t, "Not specified", rent.Language)
	assert.Equal(t, "https://github.com/sridhar1805/House-Rent", rent.URL)
}

func TestContributionSummary_RepositoryFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ContributionSummary(context.Background(), "u", 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}
