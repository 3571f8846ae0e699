// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/foliochat/internal/completion"
	"github.com/jeranaias/foliochat/internal/digest"
	"github.com/jeranaias/foliochat/internal/github"
	"github.com/jeranaias/foliochat/internal/intent"
	"github.com/jeranaias/foliochat/internal/model"
	"github.com/jeranaias/foliochat/internal/prompt"
	"github.com/jeranaias/foliochat/internal/util"
)

// =============================================================================
// FIXTURES
// =============================================================================

type stubProvider struct{}

func (stubProvider) Repositories(context.Context, string, int) ([]github.Repository, error) {
	return nil, errors.New("not used")
}

func (stubProvider) RecentCommits(context.Context, string, string, int) ([]github.Commit, error) {
	return nil, errors.New("not used")
}

func (stubProvider) ContributionSummary(context.Context, string, int) (*github.ContributionSummary, error) {
	return &github.ContributionSummary{
		Username:          "sridhar1805",
		TotalRepositories: 1,
		Repositories: []github.RepoSummary{{
			Repository: github.Repository{
				Name:        "Flood-Prediction",
				Description: "Flood forecasting using the KNN algorithm",
				Language:    "Python",
			},
			RecentCommits: []github.Commit{
				{Message: "Add model training"},
				{Message: "🐛 Fix CSV loader"},
			},
		}},
	}, nil
}

type completerFunc func(ctx context.Context, req completion.Request) (*completion.Message, error)

func (f completerFunc) Complete(ctx context.Context, req completion.Request) (*completion.Message, error) {
	return f(ctx, req)
}

// scripted replays errors in order, then answers with reply.
type scripted struct {
	mu       sync.Mutex
	errs     []error
	reply    string
	requests []completion.Request
}

func (s *scripted) Complete(_ context.Context, req completion.Request) (*completion.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &completion.Message{Role: "assistant", Content: s.reply}, nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type recordingSink struct {
	mu    sync.Mutex
	slots []Slot
}

func (r *recordingSink) Placeholder(s Slot) { r.add(s) }
func (r *recordingSink) Resolve(s Slot)     { r.add(s) }

func (r *recordingSink) add(s Slot) {
	r.mu.Lock()
	r.slots = append(r.slots, s)
	r.mu.Unlock()
}

func (r *recordingSink) all() []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Slot(nil), r.slots...)
}

func (r *recordingSink) last() Slot {
	all := r.all()
	return all[len(all)-1]
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type harness struct {
	o      *Orchestrator
	clock  *util.FakeClock
	sink   *recordingSink
	digest *digest.Builder
	prompt *prompt.Builder
}

// newHarness builds an orchestrator around c. The digest is refreshed up
// front unless staleDigest is set.
func newHarness(t *testing.T, c Completer, staleDigest bool) *harness {
	t.Helper()
	clock := util.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	log := quietLogger()

	d := digest.NewBuilder(stubProvider{}, "sridhar1805",
		digest.WithFeatured([]string{"AI Portfolio - Showcasing my AI tools"}),
		digest.WithClock(clock),
		digest.WithLogger(log))
	if !staleDigest {
		require.True(t, d.Refresh(context.Background(), "sridhar1805", 10).Refreshed)
	}

	p := prompt.NewBuilder(prompt.Profile{Owner: "Sridharan", AssistantName: "S.ai"})
	sink := &recordingSink{}

	o := New(Deps{
		Completer: c,
		Digest:    d,
		Prompt:    p,
		Guard:     intent.New("Sridharan"),
		Sink:      sink,
		Render:    func(md string) string { return "<p>" + md + "</p>" },
		Clock:     clock,
		Rand:      util.FixedRand{F: 0.5, I: 42},
		Logger:    log,
	})
	return &harness{o: o, clock: clock, sink: sink, digest: d, prompt: p}
}

func systemTurns(tr *model.Transcript) []int {
	var idx []int
	for i, turn := range tr.Turns() {
		if turn.Role == model.RoleSystem {
			idx = append(idx, i)
		}
	}
	return idx
}

// assertCleanTranscript checks that only the primary system turn remains
// and it holds want.
func assertCleanTranscript(t *testing.T, o *Orchestrator, want string) {
	t.Helper()
	tr := o.Transcript()
	assert.Equal(t, []int{0}, systemTurns(tr))
	assert.False(t, tr.HasScratch())
	assert.Equal(t, want, tr.SystemPrompt())
}

func rateLimited() error {
	return &completion.Error{Kind: completion.KindRateLimited, Status: http.StatusTooManyRequests}
}

func serverError() error {
	return &completion.Error{Kind: completion.KindServerError, Status: http.StatusServiceUnavailable}
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_OpensConversation(t *testing.T) {
	h := newHarness(t, &scripted{}, false)

	turns := h.o.Transcript().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleSystem, turns[0].Role)
	assert.Contains(t, turns[0].Content, "### Flood-Prediction")
	assert.Equal(t, model.RoleAssistant, turns[1].Role)
	assert.Contains(t, turns[1].Content, "I'm S.ai")

	assert.Equal(t, StateIdle, h.o.State())
	assert.False(t, h.o.InFlight())
	assert.Zero(t, h.o.RetryCount())
	assert.Nil(t, h.o.ScheduledRetry())
	assert.NotEmpty(t, h.o.ConversationID())
}

func TestSend_EmptyMessage(t *testing.T) {
	h := newHarness(t, &scripted{}, false)
	_, err := h.o.Send(context.Background(), "   \n")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 2, h.o.Transcript().Len())
}

// =============================================================================
// SCENARIOS
// =============================================================================

// Scenario A: a plain question succeeds on the first POST.
func TestScenarioA_SingleSuccessfulExchange(t *testing.T) {
	var o *Orchestrator
	var posts atomic.Int32
	var sawInFlight, sawAwaiting atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		sawInFlight.Store(o.InFlight())
		sawAwaiting.Store(o.State() == StateAwaitingResponse)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai", req["model"])
		assert.Equal(t, float64(42), req["seed"])
		assert.Equal(t, false, req["private"])
		assert.Equal(t, completion.DefaultReferrer, req["referrer"])

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"I mostly use **React** and Streamlit."}}]}`))
	}))
	defer server.Close()

	client := completion.NewClient().WithBaseURL(server.URL).WithLogger(quietLogger())
	h := newHarness(t, client, false)
	o = h.o
	system := o.Transcript().SystemPrompt()

	out, err := o.Send(context.Background(), "What frameworks do you use?")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Equal(t, "I mostly use **React** and Streamlit.", out.Reply)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, int32(1), posts.Load())
	assert.True(t, sawInFlight.Load(), "inFlight must be set during the call")
	assert.True(t, sawAwaiting.Load())

	assert.False(t, o.InFlight())
	assert.Zero(t, o.RetryCount())
	assert.Equal(t, StateSucceeded, o.State())

	turns := o.Transcript().Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, model.RoleUser, turns[2].Role)
	assert.Equal(t, "I mostly use **React** and Streamlit.", turns[3].Content)
	assertCleanTranscript(t, o, system)

	slots := h.sink.all()
	require.Len(t, slots, 2)
	assert.Equal(t, SlotThinking, slots[0].Kind)
	assert.Equal(t, SlotSuccess, slots[1].Kind)
	assert.Equal(t, "<p>I mostly use **React** and Streamlit.</p>", slots[1].HTML)
	assert.Equal(t, slots[0].Exchange, slots[1].Exchange)
}

// Scenario B: persistent 429s exhaust the retry budget.
func TestScenarioB_RateLimitedUntilExhausted(t *testing.T) {
	c := &scripted{errs: []error{rateLimited(), rateLimited(), rateLimited(), rateLimited()}}
	h := newHarness(t, c, false)

	var plans []RetryPlan
	h.clock.OnSleep = func(time.Duration) {
		if p := h.o.ScheduledRetry(); p != nil {
			plans = append(plans, *p)
		}
		assert.Equal(t, StateRetryScheduled, h.o.State())
		assert.True(t, h.o.InFlight(), "gate stays closed during backoff")
	}

	out, err := h.o.Send(context.Background(), "What are your skills?")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Status)
	require.NotNil(t, out.Err)
	assert.Equal(t, completion.KindRateLimited, out.Err.Kind)
	assert.Equal(t, 4, c.calls())
	assert.Equal(t, 3, h.o.RetryCount())
	assert.Equal(t, StateFailed, h.o.State())
	assert.False(t, h.o.InFlight())
	assert.Nil(t, h.o.ScheduledRetry())

	sleeps := h.clock.Sleeps()
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeps)
	for i := 1; i < len(sleeps); i++ {
		assert.Greater(t, sleeps[i], sleeps[i-1])
	}

	require.Len(t, plans, 3)
	for i, p := range plans {
		assert.Equal(t, i+1, p.Attempt)
		assert.Equal(t, sleeps[i], p.Delay)
		assert.Equal(t, completion.KindRateLimited, p.Cause)
	}

	slots := h.sink.all()
	require.Len(t, slots, 5)
	assert.Equal(t, SlotThinking, slots[0].Kind)
	assert.Equal(t, "Rate limited. Retrying in 2 seconds...", slots[1].Text)
	assert.Equal(t, "Rate limited. Retrying in 4 seconds...", slots[2].Text)
	assert.Equal(t, "Rate limited. Retrying in 8 seconds...", slots[3].Text)
	assert.Equal(t, SlotFailure, slots[4].Kind)
	assert.Equal(t, "Too many requests. Please wait a few minutes and try again.", slots[4].Text)
	assert.True(t, slots[4].RetryAvailable)

	last := h.o.Transcript().Last()
	assert.Equal(t, "[Error: Rate limited]", last.Content)
	assert.True(t, last.Synthetic)
}

// Scenario C: a question about a known project carries its excerpt.
func TestScenarioC_ProjectExcerptInjected(t *testing.T) {
	var payload struct {
		Messages []model.WireMessage `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"It predicts floods."}}]}`))
	}))
	defer server.Close()

	client := completion.NewClient().WithBaseURL(server.URL).WithLogger(quietLogger())
	h := newHarness(t, client, false)
	system := h.o.Transcript().SystemPrompt()

	out, err := h.o.Send(context.Background(), "tell me about the project Flood-Prediction")
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, out.Status)

	require.Len(t, payload.Messages, 4)
	injected := payload.Messages[2]
	assert.Equal(t, "system", injected.Role)
	assert.Contains(t, injected.Content, `The user is asking about the project "Flood-Prediction"`)
	assert.Contains(t, injected.Content, "Flood forecasting using the KNN algorithm")
	assert.Contains(t, injected.Content, "- add model training")
	assert.Contains(t, injected.Content, "- fix csv loader")
	assert.Equal(t, "user", payload.Messages[3].Role)

	assertCleanTranscript(t, h.o, system)
	for _, turn := range h.o.Transcript().Turns() {
		assert.NotContains(t, turn.Content, "The user is asking about the project")
	}
}

// Scenario D: an off-topic question gets a steering turn that is removed afterwards.
func TestScenarioD_OffTopicReminder(t *testing.T) {
	c := &scripted{reply: "I can only talk about Sridharan's work."}
	h := newHarness(t, c, false)
	system := h.o.Transcript().SystemPrompt()

	out, err := h.o.Send(context.Background(), "explain calculus")
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, out.Status)

	require.Len(t, c.requests, 1)
	msgs := c.requests[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Equal(t, "system", msgs[3].Role)
	assert.Equal(t, intent.OffTopicReminder("Sridharan"), msgs[3].Content)

	assertCleanTranscript(t, h.o, system)
}

// Scenario E: a second send during AwaitingResponse is a no-op.
func TestScenarioE_DuplicateSendIgnored(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := completerFunc(func(ctx context.Context, req completion.Request) (*completion.Message, error) {
		calls.Add(1)
		<-release
		return &completion.Message{Role: "assistant", Content: "done"}, nil
	})
	h := newHarness(t, c, false)

	first := make(chan Outcome, 1)
	go func() {
		out, _ := h.o.Send(context.Background(), "What frameworks do you use?")
		first <- out
	}()

	require.Eventually(t, func() bool {
		return h.o.State() == StateAwaitingResponse
	}, 2*time.Second, 5*time.Millisecond)

	before := h.o.Transcript().Turns()
	out, err := h.o.Send(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicateIgnored, out.Status)
	assert.Equal(t, before, h.o.Transcript().Turns())

	out, err = h.o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicateIgnored, out.Status)

	close(release)
	select {
	case out := <-first:
		assert.Equal(t, StatusSucceeded, out.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("first exchange did not finish")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 4, h.o.Transcript().Len())
}

// =============================================================================
// PROPERTIES
// =============================================================================

// P1: only the first of many concurrent sends is admitted.
func TestSingleFlight_ConcurrentSends(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := completerFunc(func(ctx context.Context, req completion.Request) (*completion.Message, error) {
		calls.Add(1)
		<-release
		return &completion.Message{Content: "ok"}, nil
	})
	h := newHarness(t, c, false)

	first := make(chan Outcome, 1)
	go func() {
		out, _ := h.o.Send(context.Background(), "first")
		first <- out
	}()
	require.Eventually(t, h.o.InFlight, 2*time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	var ignored atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.o.Send(context.Background(), "spam")
			if err == nil && out.Status == StatusDuplicateIgnored {
				ignored.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	<-first

	assert.Equal(t, int32(20), ignored.Load())
	assert.Equal(t, int32(1), calls.Load())
	for _, turn := range h.o.Transcript().Turns() {
		assert.NotEqual(t, "spam", turn.Content)
	}
}

// P2: every terminal state leaves only the primary system turn.
func TestScratchCleanup_AllOutcomes(t *testing.T) {
	cases := map[string]*scripted{
		"success":       {reply: "ok"},
		"non-retryable": {errs: []error{&completion.Error{Kind: completion.KindBadRequest, Status: 400}}},
		"exhausted":     {errs: []error{serverError(), serverError(), serverError(), serverError()}},
		"malformed":     {errs: []error{&completion.Error{Kind: completion.KindMalformedResponse, Status: 200}}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, c, false)
			system := h.o.Transcript().SystemPrompt()

			// off-topic, list request and project excerpt all at once
			_, err := h.o.Send(context.Background(), "what is the project Flood-Prediction? list your projects")
			require.NoError(t, err)

			first := c.requests[0].Messages
			var scratch int
			for _, m := range first[1:] {
				if m.Role == "system" {
					scratch++
				}
			}
			assert.Equal(t, 3, scratch)

			assertCleanTranscript(t, h.o, system)
		})
	}
}

// P3: backoff stays inside its jitter band and cap.
func TestBackoff_Bounds(t *testing.T) {
	for r := 1; r <= DefaultMaxRetries; r++ {
		base := float64(DefaultBaseRetryDelay) * float64(int(1)<<r)
		lo := time.Duration(base * 0.8)
		hi := time.Duration(base * 1.2)
		if hi > DefaultMaxRetryDelay {
			hi = DefaultMaxRetryDelay
		}
		for u := 0.0; u < 1.0; u += 0.05 {
			d := Backoff(r, Jitter(u))
			assert.GreaterOrEqual(t, d, lo, "retry %d u %.2f", r, u)
			assert.LessOrEqual(t, d, hi, "retry %d u %.2f", r, u)
		}
	}
	assert.Equal(t, DefaultMaxRetryDelay, Backoff(4, 1.2))
	assert.Equal(t, 2*time.Second, Backoff(1, 1.0))
	assert.InDelta(t, 0.8, Jitter(0), 1e-9)
	assert.InDelta(t, 1.2, Jitter(1), 1e-9)
}

// P4: success after retries resets the retry count.
func TestRetryCountResetsOnSuccess(t *testing.T) {
	c := &scripted{errs: []error{serverError(), errors.New("connection reset")}, reply: "recovered"}
	h := newHarness(t, c, false)

	out, err := h.o.Send(context.Background(), "What are you building?")
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.Zero(t, h.o.RetryCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.clock.Sleeps())

	slots := h.sink.all()
	assert.Equal(t, "Temporary server issue. Retrying in 2 seconds...", slots[1].Text)
	assert.Equal(t, "Connection issue. Retrying in 4 seconds...", slots[2].Text)
	assert.Equal(t, SlotSuccess, h.sink.last().Kind)
}

// P5 from the orchestrator's side: a fresh digest is not refreshed and
// the system prompt is left alone.
func TestSend_FreshDigestLeavesSystemPrompt(t *testing.T) {
	h := newHarness(t, &scripted{reply: "ok"}, false)
	before := h.digest.Current()
	system := h.o.Transcript().SystemPrompt()

	h.clock.Advance(digest.DefaultTTL / 2)
	_, err := h.o.Send(context.Background(), "hi")
	require.NoError(t, err)

	assert.Same(t, before, h.digest.Current())
	assert.Equal(t, system, h.o.Transcript().SystemPrompt())
}

// =============================================================================
// BEHAVIOUR
// =============================================================================

func TestSend_StaleDigestRewritesSystemPrompt(t *testing.T) {
	h := newHarness(t, &scripted{reply: "ok"}, true)
	assert.Contains(t, h.o.Transcript().SystemPrompt(), digest.Fallback)

	_, err := h.o.Send(context.Background(), "What have you built?")
	require.NoError(t, err)

	sys := h.o.Transcript().SystemPrompt()
	assert.NotContains(t, sys, digest.Fallback)
	assert.Contains(t, sys, "## Repository Overview")
	assert.Equal(t, h.prompt.System(h.digest.Text()), sys)
}

func TestSend_NonRetryableFailure(t *testing.T) {
	c := &scripted{errs: []error{&completion.Error{Kind: completion.KindNotFound, Status: 404}}}
	h := newHarness(t, c, false)

	out, err := h.o.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 1, c.calls())
	assert.Empty(t, h.clock.Sleeps())
	assert.Zero(t, h.o.RetryCount())
	assert.True(t, h.o.CanRetry())

	last := h.sink.last()
	assert.Equal(t, SlotFailure, last.Kind)
	assert.Equal(t, "The chat service is currently unavailable. (Error 404)", last.Text)

	tr := h.o.Transcript()
	assert.Equal(t, "[Error: 404]", tr.Last().Content)
	for _, m := range tr.Wire() {
		assert.NotContains(t, m.Content, "[Error:")
	}
}

func TestRetry_ReDispatchesSameTranscript(t *testing.T) {
	c := &scripted{errs: []error{&completion.Error{Kind: completion.KindBadRequest, Status: 400}}, reply: "second time lucky"}
	h := newHarness(t, c, false)

	_, err := h.o.Send(context.Background(), "What frameworks do you use?")
	require.NoError(t, err)
	require.True(t, h.o.CanRetry())

	out, err := h.o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Zero(t, h.o.RetryCount())
	assert.Empty(t, h.clock.Sleeps(), "manual retry skips the rate-limit wait")

	require.Len(t, c.requests, 2)
	assert.Equal(t, c.requests[0].Messages, c.requests[1].Messages)

	turns := h.o.Transcript().Turns()
	require.Len(t, turns, 5)
	assert.Equal(t, "[Error: 400]", turns[3].Content)
	assert.True(t, turns[3].Synthetic)
	assert.Equal(t, "second time lucky", turns[4].Content)

	slots := h.sink.all()
	assert.Equal(t, SlotRetrying, slots[2].Kind)
	assert.Equal(t, "Retrying...", slots[2].Text)

	_, err = h.o.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestRetry_AfterExhaustionResetsBudget(t *testing.T) {
	c := &scripted{errs: []error{rateLimited(), rateLimited(), rateLimited(), rateLimited(), rateLimited()}, reply: "finally"}
	h := newHarness(t, c, false)

	_, err := h.o.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, 3, h.o.RetryCount())

	out, err := h.o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Equal(t, 2, out.Attempts)
	assert.Zero(t, h.o.RetryCount())
	// 2s, 4s, 8s from the first exchange, then 2s again after the reset
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 2 * time.Second}, h.clock.Sleeps())
}

func TestRetry_NothingFailed(t *testing.T) {
	h := newHarness(t, &scripted{reply: "ok"}, false)
	_, err := h.o.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)

	_, err = h.o.Send(context.Background(), "hi")
	require.NoError(t, err)
	_, err = h.o.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestSend_RateLimitWait(t *testing.T) {
	c := &scripted{reply: "ok"}
	h := newHarness(t, c, false)

	_, err := h.o.Send(context.Background(), "one")
	require.NoError(t, err)
	assert.Empty(t, h.clock.Sleeps())

	h.clock.Advance(500 * time.Millisecond)
	_, err = h.o.Send(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Sleeps())

	h.clock.Advance(DefaultMinInterval)
	_, err = h.o.Send(context.Background(), "three")
	require.NoError(t, err)
	assert.Len(t, h.clock.Sleeps(), 1)
}

func TestSend_CanceledDuringBackoff(t *testing.T) {
	c := &scripted{errs: []error{serverError(), serverError()}}
	h := newHarness(t, c, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.OnSleep = func(time.Duration) { cancel() }

	out, err := h.o.Send(ctx, "hi")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, completion.KindCanceled, out.Err.Kind)
	assert.Equal(t, 1, c.calls())
	assert.False(t, h.o.InFlight())
	assert.Equal(t, "[Error: Cancelled]", h.o.Transcript().Last().Content)
	assert.Equal(t, "Request cancelled.", h.sink.last().Text)
}

func TestSend_CanceledDuringCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := completerFunc(func(ctx context.Context, req completion.Request) (*completion.Message, error) {
		cancel()
		return nil, ctx.Err()
	})
	h := newHarness(t, c, false)

	out, err := h.o.Send(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, completion.KindCanceled, out.Err.Kind)
	assert.Empty(t, h.clock.Sleeps())
}

func TestSend_ListRequestReminder(t *testing.T) {
	c := &scripted{reply: "- Flood-Prediction"}
	h := newHarness(t, c, false)

	_, err := h.o.Send(context.Background(), "Can you list your repositories?")
	require.NoError(t, err)

	msgs := c.requests[0].Messages
	assert.Equal(t, intent.ListReminder("Sridharan"), msgs[len(msgs)-1].Content)
	assert.False(t, h.o.Transcript().HasScratch())
}

func TestSend_OptionsShapeRequest(t *testing.T) {
	c := &scripted{reply: "ok"}
	o := New(Deps{
		Completer: c,
		Digest:    digest.NewBuilder(stubProvider{}, "u", digest.WithLogger(quietLogger())),
		Prompt:    prompt.NewBuilder(prompt.Profile{Owner: "Raven"}),
		Clock:     util.NewFakeClock(time.Now()),
		Rand:      util.FixedRand{I: 7},
		Logger:    quietLogger(),
	}, WithModel("mistral"), WithReferrer("PortfolioSite"), WithPrivate(true), WithGreeting(false))

	_, err := o.Send(context.Background(), "hi")
	require.NoError(t, err)

	req := c.requests[0]
	assert.Equal(t, "mistral", req.Model)
	assert.Equal(t, "PortfolioSite", req.Referrer)
	assert.True(t, req.Private)
	assert.Equal(t, 7, req.Seed)
	assert.Len(t, req.Messages, 2, "system and user only without a greeting")
}

func TestReset(t *testing.T) {
	h := newHarness(t, &scripted{reply: "ok"}, false)
	id := h.o.ConversationID()

	_, err := h.o.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, 4, h.o.Transcript().Len())

	require.NoError(t, h.o.Reset())
	assert.NotEqual(t, id, h.o.ConversationID())
	assert.Equal(t, 2, h.o.Transcript().Len())
	assert.Equal(t, StateIdle, h.o.State())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "awaiting_response", StateAwaitingResponse.String())
	assert.Equal(t, "duplicate_ignored", StatusDuplicateIgnored.String())
	assert.Equal(t, "retrying", SlotRetrying.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRetryScheduled.Terminal())
	assert.True(t, strings.HasPrefix(StateRateLimitWaiting.String(), "rate"))
}
