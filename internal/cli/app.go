// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/foliochat/internal/completion"
	"github.com/jeranaias/foliochat/internal/config"
	"github.com/jeranaias/foliochat/internal/contact"
	"github.com/jeranaias/foliochat/internal/digest"
	"github.com/jeranaias/foliochat/internal/github"
	"github.com/jeranaias/foliochat/internal/intent"
	"github.com/jeranaias/foliochat/internal/logging"
	"github.com/jeranaias/foliochat/internal/orchestrator"
	"github.com/jeranaias/foliochat/internal/prompt"
	"github.com/jeranaias/foliochat/internal/render"
)

// App holds the collaborators shared by every command.
type App struct {
	Config *config.Config
	Log    *logrus.Logger

	GitHub     *github.Client
	Digest     *digest.Builder
	Prompt     *prompt.Builder
	Completion *completion.Client
	Guard      *intent.Classifier
	Contact    *contact.Client

	logCloser io.Closer
}

// appOptions tweak wiring for a front end.
type appOptions struct {
	// quietLogs discards logs unless a file is configured (TUI).
	quietLogs bool
	// httpClient replaces every outbound client (tests).
	httpClient *http.Client
}

// NewApp wires the collaborators described by cfg.
func NewApp(cfg *config.Config, opts appOptions) (*App, error) {
	log, closer, err := logging.New(cfg.Log, logging.Options{Quiet: opts.quietLogs})
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(cfg.GitHub.Token).
		WithBaseURL(cfg.GitHub.APIURL).
		WithRateLimit(cfg.GitHub.RequestsPerSecond, cfg.GitHub.Burst).
		WithCommitsPerRepo(cfg.GitHub.CommitsPerRepo).
		WithLogger(log.WithField("component", "github"))

	dg := digest.NewBuilder(gh, cfg.GitHub.User,
		digest.WithFeatured(cfg.Profile.FeaturedProjects),
		digest.WithTTL(cfg.GitHub.RefreshInterval()),
		digest.WithMaxRepos(cfg.GitHub.MaxRepos),
		digest.WithLogger(log.WithField("component", "digest")))

	profile := prompt.Profile{
		Owner:         cfg.Profile.Owner,
		AssistantName: cfg.Profile.AssistantName,
	}
	if cfg.Profile.ProfileFile != "" {
		body, err := prompt.LoadProfileFile(cfg.Profile.ProfileFile)
		if err != nil {
			log.WithError(err).Warn("profile file not loaded; continuing without biography")
		} else {
			profile.Body = body
		}
	}

	cc := completion.NewClient().
		WithBaseURL(cfg.Chat.Endpoint).
		WithTimeout(cfg.Chat.Timeout()).
		WithLogger(log.WithField("component", "completion"))

	ct := contact.NewClient(contact.Config{
		ServiceID:  cfg.Contact.ServiceID,
		TemplateID: cfg.Contact.TemplateID,
		PublicKey:  cfg.Contact.PublicKey,
		APIURL:     cfg.Contact.APIURL,
	}).WithLogger(log.WithField("component", "contact"))

	if opts.httpClient != nil {
		gh.WithHTTPClient(opts.httpClient)
		cc.WithHTTPClient(opts.httpClient)
		ct.WithHTTPClient(opts.httpClient)
	}

	return &App{
		Config:     cfg,
		Log:        log,
		GitHub:     gh,
		Digest:     dg,
		Prompt:     prompt.NewBuilder(profile),
		Completion: cc,
		Guard:      intent.New(cfg.Profile.Owner),
		Contact:    ct,
		logCloser:  closer,
	}, nil
}

// NewOrchestrator opens a conversation reporting to sink.
func (a *App) NewOrchestrator(sink orchestrator.Sink) *orchestrator.Orchestrator {
	c := a.Config.Chat
	return orchestrator.New(orchestrator.Deps{
		Completer: a.Completion,
		Digest:    a.Digest,
		Prompt:    a.Prompt,
		Guard:     a.Guard,
		Sink:      sink,
		Render:    render.HTML,
		Logger:    a.Log.WithField("component", "orchestrator"),
	},
		orchestrator.WithModel(c.Model),
		orchestrator.WithReferrer(c.Referrer),
		orchestrator.WithPrivate(c.Private),
		orchestrator.WithMinInterval(c.MinInterval()),
		orchestrator.WithRetryPolicy(c.BaseRetryDelay(), c.MaxRetryDelay(), c.MaxRetries),
	)
}

// WatchProfile reloads the profile file into the prompt builder on change.
// It returns nil when no profile file is configured.
func (a *App) WatchProfile(onChange func(body string)) (*prompt.Watcher, error) {
	path := a.Config.Profile.ProfileFile
	if path == "" {
		return nil, nil
	}
	w, err := prompt.NewWatcher(path, a.Prompt, onChange, a.Log.WithField("component", "profile"))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the log file.
func (a *App) Close() error {
	if a.logCloser == nil {
		return nil
	}
	return a.logCloser.Close()
}
