// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package digest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/foliochat/internal/github"
	"github.com/jeranaias/foliochat/internal/util"
)

const (
	// DefaultTTL is how long a digest stays fresh after a successful refresh.
	DefaultTTL = 10 * time.Minute

	// DefaultMaxRepos is the number of repositories summarized.
	DefaultMaxRepos = 10
)

// =============================================================================
// TYPES
// =============================================================================

// Digest is an immutable, fully formatted repository summary.
type Digest struct {
	Text         string
	Owner        string
	Repositories []github.RepoSummary
	BuiltAt      time.Time
}

// Result reports the outcome of a refresh attempt.
//
// Refreshed is true only when a new digest replaced the old one. When the
// provider failed, Err carries the cause and Digest is the kept one (nil
// if none was ever built).
type Result struct {
	Digest    *Digest
	Refreshed bool
	Err       error
}

// StaleKept reports whether a failed refresh left the previous digest in place.
func (r Result) StaleKept() bool {
	return !r.Refreshed && r.Err != nil
}

// snapshot pairs a digest with the time of the refresh that produced it.
type snapshot struct {
	digest      *Digest
	refreshedAt time.Time
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder produces and caches the repository digest.
type Builder struct {
	provider github.Provider
	owner    string
	maxRepos int
	featured []string
	ttl      time.Duration
	clock    util.Clock
	log      logrus.FieldLogger

	current atomic.Pointer[snapshot]

	// refreshMu serializes provider round-trips; readers never take it.
	refreshMu sync.Mutex
}

// Option configures a Builder.
type Option func(*Builder)

// WithFeatured sets the curated "Featured Projects" entries.
func WithFeatured(entries []string) Option {
	return func(b *Builder) {
		b.featured = append([]string(nil), entries...)
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(b *Builder) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithMaxRepos overrides DefaultMaxRepos for RefreshIfStale.
func WithMaxRepos(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxRepos = n
		}
	}
}

// WithClock sets the time source.
func WithClock(c util.Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Builder) { b.log = log }
}

// NewBuilder creates a Builder for owner's repositories.
func NewBuilder(provider github.Provider, owner string, opts ...Option) *Builder {
	b := &Builder{
		provider: provider,
		owner:    owner,
		maxRepos: DefaultMaxRepos,
		ttl:      DefaultTTL,
		clock:    util.SystemClock{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Refresh rebuilds the digest from owner's maxRepos most recently updated
// repositories. It never fails the caller: on provider error the previous
// digest is kept and the error is reported in the Result.
func (b *Builder) Refresh(ctx context.Context, owner string, maxRepos int) Result {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()
	return b.refreshLocked(ctx, owner, maxRepos)
}

// RefreshIfStale refreshes only when the TTL since the last successful
// refresh has elapsed. A fresh digest is returned untouched.
func (b *Builder) RefreshIfStale(ctx context.Context) Result {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	if !b.staleAt(b.clock.Now()) {
		return Result{Digest: b.Current()}
	}
	return b.refreshLocked(ctx, b.owner, b.maxRepos)
}

func (b *Builder) refreshLocked(ctx context.Context, owner string, maxRepos int) Result {
	log := b.log.WithFields(logrus.Fields{"owner": owner, "max_repos": maxRepos})

	summary, err := b.provider.ContributionSummary(ctx, owner, maxRepos)
	if err != nil {
		log.WithError(err).Warn("digest refresh failed; keeping previous digest")
		return Result{Digest: b.Current(), Err: err}
	}

	now := b.clock.Now()
	d := &Digest{
		Text:         Format(owner, summary.Repositories, b.featured),
		Owner:        owner,
		Repositories: summary.Repositories,
		BuiltAt:      now,
	}
	b.current.Store(&snapshot{digest: d, refreshedAt: now})

	log.WithField("repositories", len(summary.Repositories)).Info("digest refreshed")
	return Result{Digest: d, Refreshed: true}
}

// =============================================================================
// READERS
// =============================================================================

// Current returns the cached digest, or nil before the first success.
func (b *Builder) Current() *Digest {
	s := b.current.Load()
	if s == nil {
		return nil
	}
	return s.digest
}

// Text returns the digest document, or Fallback before the first success.
func (b *Builder) Text() string {
	if d := b.Current(); d != nil {
		return d.Text
	}
	return Fallback
}

// LastRefreshed returns the time of the last successful refresh.
func (b *Builder) LastRefreshed() time.Time {
	s := b.current.Load()
	if s == nil {
		return time.Time{}
	}
	return s.refreshedAt
}

// Stale reports whether the TTL has elapsed since the last successful refresh.
func (b *Builder) Stale() bool {
	return b.staleAt(b.clock.Now())
}

func (b *Builder) staleAt(now time.Time) bool {
	s := b.current.Load()
	if s == nil {
		return true
	}
	return now.Sub(s.refreshedAt) >= b.ttl
}

// ProjectExcerpt returns the excerpt of the repository whose name equals or
// contains name (case-insensitive), or "" when there is none.
func (b *Builder) ProjectExcerpt(name string) string {
	d := b.Current()
	if d == nil || name == "" {
		return ""
	}
	needle := strings.ToLower(name)
	for _, r := range d.Repositories {
		repo := strings.ToLower(r.Name)
		if repo == needle || strings.Contains(repo, needle) {
			return Excerpt(r)
		}
	}
	return ""
}

// MatchProject returns the repository or featured project named in text.
// Repository names take precedence. It returns "" when nothing matches.
func (b *Builder) MatchProject(text string) string {
	lowered := strings.ToLower(text)
	if d := b.Current(); d != nil {
		for _, r := range d.Repositories {
			if strings.Contains(lowered, strings.ToLower(r.Name)) {
				return r.Name
			}
		}
	}
	for _, f := range b.featured {
		title := FeaturedTitle(f)
		if title != "" && strings.Contains(lowered, strings.ToLower(title)) {
			return title
		}
	}
	return ""
}
