// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package digest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/foliochat/internal/github"
	"github.com/jeranaias/foliochat/internal/util"
)

type stubProvider struct {
	summary *github.ContributionSummary
	err     error
	calls   int
}

func (s *stubProvider) Repositories(context.Context, string, int) ([]github.Repository, error) {
	return nil, errors.New("not used")
}

func (s *stubProvider) RecentCommits(context.Context, string, string, int) ([]github.Commit, error) {
	return nil, errors.New("not used")
}

func (s *stubProvider) ContributionSummary(_ context.Context, user string, limit int) (*github.ContributionSummary, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleSummary() *github.ContributionSummary {
	return &github.ContributionSummary{
		Username:          "sridhar1805",
		TotalRepositories: 2,
		Repositories: []github.RepoSummary{
			{
				Repository: github.Repository{
					Name:        "Flood-Prediction",
					Description: "KNN based flood forecasting",
					Language:    "Python",
					Stars:       4,
					Forks:       1,
				},
				RecentCommits: []github.Commit{
					{Message: "✨ Add model training\n\nbody"},
					{Message: "Fix CSV loader"},
					{Message: "[docs] Update README"},
					{Message: "Initial commit"},
				},
			},
			{
				Repository: github.Repository{
					Name:        "House-Rent",
					Description: "Rental listings site",
					Language:    "JavaScript",
					Stars:       2,
				},
			},
		},
	}
}

var featured = []string{
	"AI Portfolio - Showcasing my AI tools",
	"MangaPH - Mobile-first manga reader",
}

func newTestBuilder(p github.Provider, clock util.Clock) *Builder {
	return NewBuilder(p, "sridhar1805",
		WithFeatured(featured),
		WithClock(clock),
		WithLogger(quietLogger()))
}

// =============================================================================
// FORMAT
// =============================================================================

func TestFormat_Document(t *testing.T) {
	got := Format("sridhar1805", sampleSummary().Repositories, featured)

	want := "## Repository Overview\n" +
		"sridhar1805 has 2 active repositories covering various projects.\n\n" +
		"## Technologies Used\n" +
		"- **Python**: 1 projects\n" +
		"- **JavaScript**: 1 projects\n\n" +
		"## Project Details\n" +
		"### Flood-Prediction\n" +
		"**Description**: KNN based flood forecasting\n" +
		"**Primary Language**: Python\n" +
		"**Stars**: 4 | **Forks**: 1\n" +
		"**Recent Updates**:\n" +
		"- add model training\n" +
		"- fix csv loader\n" +
		"- docs] update readme\n\n" +
		"### House-Rent\n" +
		"**Description**: Rental listings site\n" +
		"**Primary Language**: JavaScript\n" +
		"**Stars**: 2\n\n" +
		"## Featured Projects\n" +
		"- AI Portfolio - Showcasing my AI tools\n" +
		"- MangaPH - Mobile-first manga reader\n"

	assert.Equal(t, want, got)
}

func TestFormat_Stable(t *testing.T) {
	repos := sampleSummary().Repositories
	assert.Equal(t, Format("o", repos, featured), Format("o", repos, featured))
}

func TestNormalizeCommit(t *testing.T) {
	tests := map[string]string{
		"Fix Bug":               "fix bug",
		"🐛 Fix crash\nmore":     "fix crash",
		"*** Release v2":        "release v2",
		"  Already clean":       "already clean",
		"Ünïcode TITLE":         "ünïcode title",
		"_underscore is a word": "_underscore is a word",
		"":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCommit(in), "NormalizeCommit(%q)", in)
	}
}

func TestExcerpt(t *testing.T) {
	got := Excerpt(sampleSummary().Repositories[0])
	assert.Equal(t, "## Flood-Prediction\n\n"+
		"**Description**: KNN based flood forecasting\n\n"+
		"**Primary Language**: Python\n\n"+
		"**Recent Activity**:\n"+
		"- add model training\n"+
		"- fix csv loader\n"+
		"- docs] update readme\n"+
		"- initial commit\n", got)
}

// =============================================================================
// BUILDER
// =============================================================================

func TestBuilder_FallbackBeforeFirstRefresh(t *testing.T) {
	b := newTestBuilder(&stubProvider{err: errors.New("offline")}, util.NewFakeClock(time.Now()))

	assert.Equal(t, Fallback, b.Text())
	assert.Nil(t, b.Current())
	assert.True(t, b.Stale())

	res := b.Refresh(context.Background(), "sridhar1805", 10)
	assert.True(t, res.StaleKept())
	assert.Nil(t, res.Digest)
	assert.Equal(t, Fallback, b.Text())
}

func TestBuilder_RefreshFailureKeepsPreviousDigest(t *testing.T) {
	p := &stubProvider{summary: sampleSummary()}
	clock := util.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	b := newTestBuilder(p, clock)

	first := b.Refresh(context.Background(), "sridhar1805", 10)
	require.True(t, first.Refreshed)
	before := b.Text()

	p.err = &github.APIError{Status: 403, Message: "rate limit"}
	clock.Advance(time.Hour)
	res := b.RefreshIfStale(context.Background())

	assert.True(t, res.StaleKept())
	assert.Same(t, first.Digest, res.Digest)
	assert.Equal(t, before, b.Text())
	assert.Equal(t, first.Digest.BuiltAt, b.LastRefreshed(), "failed refresh must not move lastRefreshed")
}

func TestBuilder_RefreshIfStaleWithinTTLIsNoop(t *testing.T) {
	p := &stubProvider{summary: sampleSummary()}
	clock := util.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	b := newTestBuilder(p, clock)

	require.True(t, b.Refresh(context.Background(), "sridhar1805", 10).Refreshed)
	before := b.Text()
	ptr := b.Current()

	// Provider data changes, but the digest is still fresh.
	changed := sampleSummary()
	changed.Repositories[0].Description = "something else"
	p.summary = changed

	clock.Advance(DefaultTTL - time.Second)
	res := b.RefreshIfStale(context.Background())

	assert.False(t, res.Refreshed)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, p.calls)
	assert.Same(t, ptr, b.Current())
	assert.Equal(t, before, b.Text())
}

func TestBuilder_RefreshIfStaleAfterTTL(t *testing.T) {
	p := &stubProvider{summary: sampleSummary()}
	clock := util.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	b := newTestBuilder(p, clock)

	require.True(t, b.Refresh(context.Background(), "sridhar1805", 10).Refreshed)

	changed := sampleSummary()
	changed.Repositories[0].Description = "Flood forecasting v2"
	p.summary = changed
	clock.Advance(DefaultTTL)

	res := b.RefreshIfStale(context.Background())
	require.True(t, res.Refreshed)
	assert.Contains(t, b.Text(), "Flood forecasting v2")
	assert.Equal(t, clock.Now(), b.LastRefreshed())
}

func TestBuilder_MatchProject(t *testing.T) {
	b := newTestBuilder(&stubProvider{summary: sampleSummary()}, util.NewFakeClock(time.Now()))

	assert.Equal(t, "", b.MatchProject("tell me about the project Flood-Prediction"),
		"nothing matches repositories before the first refresh")
	assert.Equal(t, "AI Portfolio", b.MatchProject("what is the project ai portfolio"))

	b.Refresh(context.Background(), "sridhar1805", 10)
	assert.Equal(t, "Flood-Prediction", b.MatchProject("tell me about the project flood-prediction"))
	assert.Equal(t, "MangaPH", b.MatchProject("describe project MangaPH"))
	assert.Equal(t, "", b.MatchProject("what is your favorite food"))
}

func TestBuilder_ProjectExcerpt(t *testing.T) {
	b := newTestBuilder(&stubProvider{summary: sampleSummary()}, util.NewFakeClock(time.Now()))
	assert.Empty(t, b.ProjectExcerpt("Flood-Prediction"))

	b.Refresh(context.Background(), "sridhar1805", 10)
	assert.Contains(t, b.ProjectExcerpt("flood-prediction"), "KNN based flood forecasting")
	assert.Contains(t, b.ProjectExcerpt("House"), "## House-Rent")
	assert.Empty(t, b.ProjectExcerpt("MangaPH"))
	assert.Empty(t, b.ProjectExcerpt(""))
}

func TestFeaturedTitle(t *testing.T) {
	assert.Equal(t, "Dreven (AI Chatbot)", FeaturedTitle("Dreven (AI Chatbot) - NLP-based assistant"))
	assert.Equal(t, "Plain", FeaturedTitle("Plain"))
}
