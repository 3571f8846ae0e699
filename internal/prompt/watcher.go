// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts of writes from editors.
const DefaultDebounce = 200 * time.Millisecond

// =============================================================================
// PROFILE WATCHER
// =============================================================================

// Watcher reloads a profile file into a Builder whenever it changes.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temp file and renaming it are still observed.
type Watcher struct {
	path     string
	builder  *Builder
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(body string)
	log      logrus.FieldLogger

	mu    sync.Mutex
	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for path feeding b. onChange, if non-nil,
// runs after every successful reload.
func NewWatcher(path string, b *Builder, onChange func(body string), log logrus.FieldLogger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     abs,
		builder:  b,
		watcher:  fw,
		debounce: DefaultDebounce,
		onChange: onChange,
		log:      log.WithField("profile", abs),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Watch starts watching in the background.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) processEvents() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("profile watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	body, err := LoadProfileFile(w.path)
	if err != nil {
		w.log.WithError(err).Warn("could not reload profile")
		return
	}
	w.builder.SetBody(body)
	w.log.Info("profile reloaded")
	if w.onChange != nil {
		w.onChange(body)
	}
}
