// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/foliochat/internal/completion"
	"github.com/jeranaias/foliochat/internal/digest"
	"github.com/jeranaias/foliochat/internal/intent"
	"github.com/jeranaias/foliochat/internal/model"
	"github.com/jeranaias/foliochat/internal/util"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Completer performs one completion attempt. *completion.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Message, error)
}

// DigestSource is the repository digest. *digest.Builder implements it.
type DigestSource interface {
	RefreshIfStale(ctx context.Context) digest.Result
	Text() string
	MatchProject(text string) string
	ProjectExcerpt(name string) string
}

// PromptSource renders the primary system turn. *prompt.Builder implements it.
type PromptSource interface {
	System(digest string) string
	Greeting() string
}

// Deps are the collaborators of an Orchestrator. Completer, Digest and
// Prompt are required; the rest default to real or no-op implementations.
type Deps struct {
	Completer Completer
	Digest    DigestSource
	Prompt    PromptSource
	Guard     *intent.Classifier
	Sink      Sink
	// Render converts a markdown reply to HTML for Slot.HTML.
	Render func(markdown string) string
	Clock  util.Clock
	Rand   util.Rand
	Logger logrus.FieldLogger
}

// Option configures request policy.
type Option func(*Orchestrator)

// WithModel sets the model name sent with each request.
func WithModel(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.model = name
		}
	}
}

// WithReferrer sets the referrer sent with each request.
func WithReferrer(ref string) Option {
	return func(o *Orchestrator) {
		if ref != "" {
			o.referrer = ref
		}
	}
}

// WithPrivate sets the request's private flag.
func WithPrivate(private bool) Option {
	return func(o *Orchestrator) { o.private = private }
}

// WithMinInterval sets the minimum spacing between user-initiated requests.
func WithMinInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.minInterval = d
		}
	}
}

// WithRetryPolicy sets the backoff base, cap and retry budget.
func WithRetryPolicy(base, maxDelay time.Duration, maxRetries int) Option {
	return func(o *Orchestrator) {
		if base > 0 {
			o.baseDelay = base
		}
		if maxDelay > 0 {
			o.maxDelay = maxDelay
		}
		if maxRetries >= 0 {
			o.maxRetries = maxRetries
		}
	}
}

// WithGreeting controls whether a new conversation opens with the
// assistant's greeting turn. Enabled by default.
func WithGreeting(enabled bool) Option {
	return func(o *Orchestrator) { o.greeting = enabled }
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs the exchanges of one conversation. It is safe for
// concurrent use; its mutex is never held across a wait or a network call.
type Orchestrator struct {
	completer Completer
	digest    DigestSource
	prompt    PromptSource
	guard     *intent.Classifier
	sink      Sink
	render    func(string) string
	clock     util.Clock
	rand      util.Rand
	log       logrus.FieldLogger

	model       string
	referrer    string
	private     bool
	minInterval time.Duration
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxRetries  int
	greeting    bool

	mu              sync.Mutex
	conversationID  string
	transcript      *model.Transcript
	state           State
	inFlight        bool
	lastRequestTime time.Time
	retryCount      int
	scheduledRetry  *RetryPlan
	lastFailed      bool
	exchangeSeq     int
}

// New creates an orchestrator and opens its conversation.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer:   deps.Completer,
		digest:      deps.Digest,
		prompt:      deps.Prompt,
		guard:       deps.Guard,
		sink:        deps.Sink,
		render:      deps.Render,
		clock:       deps.Clock,
		rand:        deps.Rand,
		log:         deps.Logger,
		model:       completion.DefaultModel,
		referrer:    completion.DefaultReferrer,
		minInterval: DefaultMinInterval,
		baseDelay:   DefaultBaseRetryDelay,
		maxDelay:    DefaultMaxRetryDelay,
		maxRetries:  DefaultMaxRetries,
		greeting:    true,
	}
	if o.guard == nil {
		o.guard = intent.New("")
	}
	if o.sink == nil {
		o.sink = nopSink{}
	}
	if o.clock == nil {
		o.clock = util.SystemClock{}
	}
	if o.rand == nil {
		o.rand = util.SystemRand{}
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	for _, opt := range opts {
		opt(o)
	}
	o.openConversation()
	return o
}

// openConversation installs a fresh transcript. Caller holds mu or owns o.
func (o *Orchestrator) openConversation() {
	o.conversationID = uuid.NewString()
	o.transcript = model.NewTranscript(o.prompt.System(o.digest.Text()))
	if o.greeting {
		if g := o.prompt.Greeting(); g != "" {
			o.transcript.AppendAssistant(g)
		}
	}
	o.state = StateIdle
	o.retryCount = 0
	o.scheduledRetry = nil
	o.lastFailed = false
	o.exchangeSeq = 0
}

// Reset starts a new conversation. It fails with ErrBusy while an
// exchange is in flight.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrBusy
	}
	o.openConversation()
	o.log.WithField("conversation", o.conversationID).Info("conversation reset")
	return nil
}

// Send submits a user message and runs the exchange to a terminal state.
//
// A Send that arrives while another exchange is outstanding returns
// StatusDuplicateIgnored immediately and leaves the transcript untouched.
// The returned error is non-nil only for ErrEmptyMessage; exchange failures
// are reported in the Outcome.
func (o *Orchestrator) Send(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}

	o.mu.Lock()
	if o.inFlight {
		id := o.conversationID
		o.mu.Unlock()
		o.log.WithField("conversation", id).Debug("send ignored: exchange in flight")
		return Outcome{Status: StatusDuplicateIgnored}, nil
	}
	o.inFlight = true
	o.state = StateAdmitting
	o.lastFailed = false
	o.exchangeSeq++
	exchange := o.exchangeSeq
	o.mu.Unlock()

	log := o.exchangeLog(exchange)

	// Refresh outside the lock: the provider may be slow. The builder keeps
	// the previous digest on failure and logs the cause itself.
	if res := o.digest.RefreshIfStale(ctx); res.Refreshed {
		log.Debug("digest refreshed before dispatch")
	}

	o.mu.Lock()
	o.syncSystemPromptLocked()
	o.transcript.AppendUser(text)
	o.applyGuardsLocked(text, log)
	wait := o.minInterval - o.clock.Now().Sub(o.lastRequestTime)
	if wait > 0 {
		o.state = StateRateLimitWaiting
	}
	o.mu.Unlock()

	if wait > 0 {
		log.WithField("delay", wait).Debug("rate limit wait")
		if err := o.clock.Sleep(ctx, wait); err != nil {
			return o.fail(exchange, 0, completion.AsError(err), log), nil
		}
	}

	o.sink.Placeholder(Slot{Exchange: exchange, Kind: SlotThinking, Text: "Thinking..."})
	return o.run(ctx, exchange, log), nil
}

// Retry re-attempts the last exchange after a terminal failure with a
// fresh retry budget. The failed user turn is sent again unchanged; the
// synthetic error turn stays in the log but is not sent.
func (o *Orchestrator) Retry(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return Outcome{Status: StatusDuplicateIgnored}, nil
	}
	last, ok := o.transcript.LastUser()
	if !o.lastFailed || !ok {
		o.mu.Unlock()
		return Outcome{}, ErrNothingToRetry
	}
	o.inFlight = true
	o.lastFailed = false
	o.retryCount = 0
	o.state = StateAdmitting
	o.exchangeSeq++
	exchange := o.exchangeSeq
	log := o.exchangeLog(exchange)
	o.applyGuardsLocked(last.Content, log)
	o.mu.Unlock()

	log.Info("manual retry")
	o.sink.Placeholder(Slot{Exchange: exchange, Kind: SlotRetrying, Text: "Retrying..."})
	return o.run(ctx, exchange, log), nil
}

// run is the attempt loop of one admitted exchange.
func (o *Orchestrator) run(ctx context.Context, exchange int, log logrus.FieldLogger) Outcome {
	projectInjected := false
	attempts := 0

	for {
		attempts++

		o.mu.Lock()
		o.state = StateDispatching
		o.scheduledRetry = nil
		o.lastRequestTime = o.clock.Now()
		if !projectInjected {
			projectInjected = o.injectProjectLocked(log)
		}
		req := completion.Request{
			Model:    o.model,
			Messages: o.transcript.Wire(),
			Seed:     o.rand.IntN(seedRange),
			Private:  o.private,
			Referrer: o.referrer,
		}
		o.state = StateAwaitingResponse
		o.mu.Unlock()

		alog := log.WithField("attempt", attempts)
		alog.WithField("messages", fmt.Sprintf("[%d messages]", len(req.Messages))).Debug("dispatching")

		msg, err := o.completer.Complete(ctx, req)
		if err == nil {
			return o.succeed(exchange, attempts, msg.Content, alog)
		}

		cerr := completion.AsError(err)

		o.mu.Lock()
		if !cerr.Retryable() || o.retryCount >= o.maxRetries {
			o.mu.Unlock()
			return o.fail(exchange, attempts, cerr, alog)
		}
		o.retryCount++
		delay := backoff(o.baseDelay, o.maxDelay, o.retryCount, Jitter(o.rand.Float64()))
		plan := &RetryPlan{
			Attempt: o.retryCount,
			Delay:   delay,
			Due:     o.clock.Now().Add(delay),
			Cause:   cerr.Kind,
		}
		o.scheduledRetry = plan
		o.state = StateRetryScheduled
		o.mu.Unlock()

		alog.WithFields(logrus.Fields{
			"kind":  cerr.Kind,
			"retry": plan.Attempt,
			"delay": delay,
		}).Warn("retryable completion failure")

		o.sink.Placeholder(Slot{Exchange: exchange, Kind: SlotRetrying, Text: cerr.Kind.RetryingText(delay)})

		if err := o.clock.Sleep(ctx, delay); err != nil {
			return o.fail(exchange, attempts, completion.AsError(err), alog)
		}
	}
}

func (o *Orchestrator) succeed(exchange, attempts int, reply string, log logrus.FieldLogger) Outcome {
	o.mu.Lock()
	o.transcript.AppendAssistant(reply)
	o.retryCount = 0
	o.state = StateSucceeded
	o.finishLocked()
	o.mu.Unlock()

	log.Info("exchange succeeded")

	slot := Slot{Exchange: exchange, Kind: SlotSuccess, Text: reply}
	if o.render != nil {
		slot.HTML = o.render(reply)
	}
	o.sink.Resolve(slot)
	return Outcome{Status: StatusSucceeded, Exchange: exchange, Reply: reply, Attempts: attempts}
}

func (o *Orchestrator) fail(exchange, attempts int, cerr *completion.Error, log logrus.FieldLogger) Outcome {
	o.mu.Lock()
	o.transcript.Append(model.NewErrorTurn(cerr.TranscriptTag()))
	o.state = StateFailed
	o.lastFailed = true
	o.finishLocked()
	o.mu.Unlock()

	log.WithError(cerr).WithField("kind", cerr.Kind).Warn("exchange failed")

	o.sink.Resolve(Slot{
		Exchange:       exchange,
		Kind:           SlotFailure,
		Text:           cerr.DisplayText(),
		RetryAvailable: true,
	})
	return Outcome{Status: StatusFailed, Exchange: exchange, Err: cerr, Attempts: attempts}
}

// finishLocked is the single cleanup step of every exchange.
func (o *Orchestrator) finishLocked() {
	o.transcript.DropScratch()
	o.scheduledRetry = nil
	o.inFlight = false
}

// syncSystemPromptLocked rewrites the primary system turn when the digest
// or the profile changed since it was last rendered.
func (o *Orchestrator) syncSystemPromptLocked() {
	sys := o.prompt.System(o.digest.Text())
	if sys != o.transcript.SystemPrompt() {
		o.transcript.SetSystemPrompt(sys)
	}
}

// applyGuardsLocked adds the steering scratch turns for text.
func (o *Orchestrator) applyGuardsLocked(text string, log logrus.FieldLogger) {
	r := o.guard.Classify(text)
	if !r.Relevant {
		o.transcript.AppendScratch(intent.OffTopicReminder(o.guard.Owner()))
		log.Debug("off-topic reminder added")
	}
	if r.ListRequest {
		o.transcript.AppendScratch(intent.ListReminder(o.guard.Owner()))
		log.Debug("list reminder added")
	}
}

// injectProjectLocked places the project excerpt before the latest user
// turn when that turn asks about a known project.
func (o *Orchestrator) injectProjectLocked(log logrus.FieldLogger) bool {
	last, ok := o.transcript.LastUser()
	if !ok || !intent.IsProjectQuery(last.Content) {
		return false
	}
	name := o.digest.MatchProject(last.Content)
	if name == "" {
		return false
	}
	excerpt := o.digest.ProjectExcerpt(name)
	if excerpt == "" {
		return false
	}
	if !o.transcript.InsertScratchBeforeLastUser(intent.ProjectContext(name, excerpt)) {
		return false
	}
	log.WithField("repo", name).Debug("project excerpt added")
	return true
}

func (o *Orchestrator) exchangeLog(exchange int) logrus.FieldLogger {
	return o.log.WithFields(logrus.Fields{
		"conversation": o.conversationID,
		"exchange":     exchange,
	})
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// InFlight reports whether an exchange is outstanding.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// RetryCount returns the automatic retries used by the current or last exchange.
func (o *Orchestrator) RetryCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retryCount
}

// ScheduledRetry returns the pending retry, or nil when none is waiting.
func (o *Orchestrator) ScheduledRetry() *RetryPlan {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.scheduledRetry == nil {
		return nil
	}
	plan := *o.scheduledRetry
	return &plan
}

// CanRetry reports whether Retry would re-attempt a failed exchange.
func (o *Orchestrator) CanRetry() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastFailed && !o.inFlight
}

// Transcript returns a snapshot of the conversation.
func (o *Orchestrator) Transcript() *model.Transcript {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript.Snapshot()
}

// ConversationID identifies the current conversation in logs.
func (o *Orchestrator) ConversationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversationID
}
