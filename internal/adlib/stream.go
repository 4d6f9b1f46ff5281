package adlib

import (
	"iter"
	"sync"
)

// EndReason records why a Stream stopped producing batches.
type EndReason int

const (
	ReasonNotStarted EndReason = iota
	ReasonEndOfData
	ReasonRetriesExhausted
	ReasonMalformed
	ReasonNavigationFailed
	ReasonBrowserFailed
	ReasonCanceled
	ReasonStopped
)

var reasonNames = map[EndReason]string{
	ReasonNotStarted:       "not-started",
	ReasonEndOfData:        "end-of-data",
	ReasonRetriesExhausted: "retries-exhausted",
	ReasonMalformed:        "malformed-response",
	ReasonNavigationFailed: "navigation-failed",
	ReasonBrowserFailed:    "browser-failed",
	ReasonCanceled:         "canceled",
	ReasonStopped:          "stopped",
}

func (r EndReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// producer pushes batches into yield and reports why it stopped.
type producer func(yield func(Batch) bool) EndReason

// Stream is a single-use, forward-only sequence of batches.
type Stream struct {
	produce producer

	mu     sync.Mutex
	used   bool
	reason EndReason
}

func newStream(p producer) *Stream {
	return &Stream{produce: p}
}

// All returns the batch sequence. Only the first range over any sequence
// returned by All drives the traversal; later ranges yield nothing.
func (s *Stream) All() iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		s.mu.Lock()
		if s.used {
			s.mu.Unlock()
			return
		}
		s.used = true
		s.mu.Unlock()

		reason := s.produce(yield)

		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
	}
}

// Reason reports why the stream ended. It is ReasonNotStarted until the
// first range over All has returned.
func (s *Stream) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() []Batch {
	var batches []Batch
	for b := range s.All() {
		batches = append(batches, b)
	}
	return batches
}

// StreamOf returns a Stream over batches already in memory.
func StreamOf(batches ...Batch) *Stream {
	return newStream(func(yield func(Batch) bool) EndReason {
		for _, b := range batches {
			if !yield(b) {
				return ReasonStopped
			}
		}
		return ReasonEndOfData
	})
}
