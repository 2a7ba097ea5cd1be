// Package confwatcher notifies callers when the configuration file changes
// on disk, so the core can hot-reload without a restart.
package confwatcher

import (
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfWatcher watches a configuration file for writes.
type ConfWatcher struct {
	inner *fsnotify.Watcher

	signal chan struct{}
	done   chan struct{}
}

// New allocates a ConfWatcher for confPath. It is not an error for the file
// to not exist yet.
func New(confPath string) (*ConfWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(confPath); err == nil {
		err := inner.Add(confPath)
		if err != nil {
			inner.Close()
			return nil, err
		}
	}

	w := &ConfWatcher{
		inner:  inner,
		signal: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *ConfWatcher) Close() {
	go func() {
		for range w.signal { //nolint:revive
		}
	}()
	w.inner.Close()
	<-w.done
}

func (w *ConfWatcher) run() {
	defer close(w.done)

outer:
	for {
		select {
		case event := <-w.inner.Events:
			if (event.Op & fsnotify.Write) == fsnotify.Write {
				// wait some additional time to avoid reading a half-written file
				time.Sleep(10 * time.Millisecond)
				w.signal <- struct{}{}
			}

		case <-w.inner.Errors:
			break outer
		}
	}

	close(w.signal)
}

// Watch returns the channel that receives a value every time the watched
// file changes.
func (w *ConfWatcher) Watch() chan struct{} {
	return w.signal
}
