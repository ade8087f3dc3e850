package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// maxSettleWindows bounds how long a file that keeps growing is held back.
const maxSettleWindows = 20

// StatFunc returns the size of a file relative to the watched directory,
// and false when it no longer exists.
type StatFunc func(rel string) (int64, bool)

// Settler holds file events until the file stops changing. A file is
// released once a window passes with no event for it and its size is the
// same as when it was last seen, so an export still being written is not
// read half-way. Operations on one path merge while it is held:
//
//	create then modify   -> create
//	create then delete   -> dropped
//	delete then create   -> modify (replaced)
//	anything then delete -> delete
type Settler struct {
	window time.Duration
	stat   StatFunc
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]*heldFile
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

type heldFile struct {
	op    Operation
	size  int64
	since time.Time
}

// NewSettler creates a settler. A nil stat treats every file as settled.
func NewSettler(window time.Duration, stat StatFunc) *Settler {
	if stat == nil {
		stat = func(string) (int64, bool) { return 0, true }
	}
	return &Settler{
		window:  window,
		stat:    stat,
		now:     time.Now,
		pending: make(map[string]*heldFile),
		output:  make(chan []FileEvent, 10),
	}
}

// mergeOps folds next into a held operation. ok is false when the two
// cancel out.
func mergeOps(held, next Operation) (op Operation, ok bool) {
	switch {
	case next == OpDelete && held == OpCreate:
		return 0, false
	case next == OpDelete:
		return OpDelete, true
	case held == OpDelete:
		return OpModify, true
	case held == OpCreate:
		return OpCreate, true
	default:
		return next, true
	}
}

// Add records an event and restarts the quiet window.
func (s *Settler) Add(event FileEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	size := int64(-1)
	if event.Operation != OpDelete {
		if n, ok := s.stat(event.Path); ok {
			size = n
		}
	}

	if h, ok := s.pending[event.Path]; ok {
		op, keep := mergeOps(h.op, event.Operation)
		if !keep {
			delete(s.pending, event.Path)
		} else {
			h.op = op
			h.size = size
		}
	} else {
		s.pending[event.Path] = &heldFile{op: event.Operation, size: size, since: s.now()}
	}

	s.schedule()
}

// schedule must be called with the lock held.
func (s *Settler) schedule() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.release)
}

func (s *Settler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || len(s.pending) == 0 {
		return
	}

	now := s.now()
	limit := time.Duration(maxSettleWindows) * s.window
	var ready []FileEvent
	for path, h := range s.pending {
		if h.op == OpDelete {
			ready = append(ready, FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
			delete(s.pending, path)
			continue
		}

		size, exists := s.stat(path)
		switch {
		case !exists && h.op == OpCreate:
			// gone before it settled
			delete(s.pending, path)
		case !exists:
			ready = append(ready, FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
			delete(s.pending, path)
		case size != h.size && now.Sub(h.since) < limit:
			h.size = size
		default:
			if size != h.size {
				slog.Warn("watch_file_unsettled", slog.String("path", path), slog.Int64("size", size))
			}
			ready = append(ready, FileEvent{Path: path, Operation: h.op, Size: size, Timestamp: now})
			delete(s.pending, path)
		}
	}

	if len(s.pending) > 0 {
		s.schedule()
	}
	if len(ready) == 0 {
		return
	}

	// Files dropped together are indexed in name order.
	sort.Slice(ready, func(i, j int) bool { return ready[i].Path < ready[j].Path })

	select {
	case s.output <- ready:
	default:
		slog.Warn("watch_batch_dropped",
			slog.Int("batch_size", len(ready)),
			slog.String("first", ready[0].Path))
	}
}

// Pending returns the number of files being held.
func (s *Settler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Output returns the channel of released batches, each sorted by path.
func (s *Settler) Output() <-chan []FileEvent {
	return s.output
}

// Stop discards held files and closes the output channel. Safe to call
// more than once.
func (s *Settler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.output)
}
