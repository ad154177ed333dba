package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultIgnore lists directory names never watched.
var DefaultIgnore = []string{".git", "node_modules", ".assetflow-cache"}

// FSNotifyOptions configures an FSNotifySource.
type FSNotifyOptions struct {
	// Ignore holds globs matched against directory and file paths relative to
	// the root, and against base names. Defaults to DefaultIgnore.
	Ignore []string
	// BufferSize is the event channel capacity. Events are dropped when it is
	// full.
	BufferSize int
}

// FSNotifySource watches a directory tree with fsnotify. Directories created
// after the source starts are watched too.
type FSNotifySource struct {
	root    string
	opts    FSNotifyOptions
	watcher *fsnotify.Watcher

	events  chan Event
	errors  chan error
	closeCh chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

var _ EventSource = (*FSNotifySource)(nil)

// NewFSNotifySource starts watching root recursively.
func NewFSNotifySource(root string, opts FSNotifyOptions) (*FSNotifySource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &FSNotifySource{
		root:    abs,
		opts:    opts,
		watcher: fsw,
		events:  make(chan Event, opts.BufferSize),
		errors:  make(chan error, 16),
		closeCh: make(chan struct{}),
	}
	if err := s.watchTree(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.processLoop()
	return s, nil
}

// Root returns the absolute watched directory.
func (s *FSNotifySource) Root() string { return s.root }

func (s *FSNotifySource) Events() <-chan Event { return s.events }
func (s *FSNotifySource) Errors() <-chan error { return s.errors }

// Close stops the watcher and closes both channels.
func (s *FSNotifySource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closeCh)
		err = s.watcher.Close()
		s.wg.Wait()
		close(s.events)
		close(s.errors)
	})
	return err
}

// watchTree adds dir and every non-ignored directory below it.
func (s *FSNotifySource) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil // Skip errors, continue walking
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.root && s.ignored(p) {
			return filepath.SkipDir
		}
		return s.watcher.Add(p)
	})
}

func (s *FSNotifySource) processLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.closeCh:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendError(err)
		}
	}
}

func (s *FSNotifySource) handle(ev fsnotify.Event) {
	kind := convertOp(ev.Op)
	if kind == 0 || s.ignored(ev.Name) {
		return
	}

	if kind == Created {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.watchTree(ev.Name); err != nil {
				s.sendError(err)
			}
			return
		}
	}

	select {
	case s.events <- Event{Path: ev.Name, Kind: kind}:
	default:
		// Channel full, drop event
		s.sendError(errors.New("watch: event buffer full, dropping event for " + ev.Name))
	}
}

func (s *FSNotifySource) sendError(err error) {
	select {
	case s.errors <- err:
	default:
	}
}

func (s *FSNotifySource) ignored(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(p)
	for _, pattern := range s.opts.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// convertOp maps an fsnotify op to a Kind. Chmod-only events map to 0.
func convertOp(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return Created
	case op.Has(fsnotify.Remove):
		return Deleted
	case op.Has(fsnotify.Rename):
		return Renamed
	case op.Has(fsnotify.Write):
		return Modified
	}
	return 0
}
