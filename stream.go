package aigate

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/13108387302/aigate/internal/metrics"
	"github.com/13108387302/aigate/pkg/provider"
	"github.com/13108387302/aigate/pkg/types"
)

// Stream delivers incremental content for a streaming request. It is finite
// and not restartable: after Recv returns io.EOF or an error, the stream is
// settled and further reads return the same terminal state.
type Stream struct {
	o        *Orchestrator
	inner    provider.Stream
	provider string
	req      *types.Request
	started  time.Time

	mu       sync.Mutex
	settled  bool
	terminal error
	cleanup  func()
}

func newStream(o *Orchestrator, inner provider.Stream, providerName string, req *types.Request, started time.Time, cleanup func()) *Stream {
	return &Stream{
		o:        o,
		inner:    inner,
		provider: providerName,
		req:      req,
		started:  started,
		cleanup:  cleanup,
	}
}

// RequestID returns the ID of the request feeding this stream.
func (s *Stream) RequestID() string {
	return s.req.ID
}

// Provider returns the name of the provider serving this stream.
func (s *Stream) Provider() string {
	return s.provider
}

// Recv returns the next content chunk. It returns io.EOF when the stream
// completes, context.Canceled when the request was canceled, and a
// taxonomy error when the provider fails mid-stream.
func (s *Stream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settled {
		return "", s.terminal
	}

	chunk, err := s.inner.Recv()
	switch {
	case err == nil:
		metrics.StreamChunks.WithLabelValues(s.provider).Inc()
		s.o.events.publish(Event{Type: EventStreamChunk, RequestID: s.req.ID, Provider: s.provider, Chunk: chunk})
		return chunk, nil

	case errors.Is(err, io.EOF):
		s.settle(io.EOF)
		s.o.tracker.RecordSuccess(s.provider, time.Since(s.started))
		s.o.totalSuccesses.Add(1)
		metrics.RequestsTotal.WithLabelValues(s.provider, string(s.req.Type), "success").Inc()
		metrics.RequestLatency.WithLabelValues(s.provider, string(s.req.Type)).Observe(time.Since(s.started).Seconds())
		s.o.events.publish(Event{Type: EventStreamCompleted, RequestID: s.req.ID, Provider: s.provider})
		return "", io.EOF

	case errors.Is(err, context.Canceled):
		s.settle(context.Canceled)
		s.o.totalFailures.Add(1)
		metrics.RequestsTotal.WithLabelValues(s.provider, string(s.req.Type), "canceled").Inc()
		s.o.events.publish(Event{Type: EventRequestCanceled, RequestID: s.req.ID, Provider: s.provider})
		return "", context.Canceled

	default:
		s.settle(err)
		s.o.tracker.RecordFailure(s.provider, time.Since(s.started))
		s.o.totalFailures.Add(1)
		metrics.RequestsTotal.WithLabelValues(s.provider, string(s.req.Type), "failure").Inc()
		s.o.events.publish(Event{Type: EventStreamFailed, RequestID: s.req.ID, Provider: s.provider, Err: err})
		return "", err
	}
}

// Close abandons the stream. Closing before the terminal state counts the
// request as canceled.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settled {
		return s.inner.Close()
	}
	s.settle(context.Canceled)
	s.o.totalFailures.Add(1)
	metrics.RequestsTotal.WithLabelValues(s.provider, string(s.req.Type), "canceled").Inc()
	s.o.events.publish(Event{Type: EventRequestCanceled, RequestID: s.req.ID, Provider: s.provider})
	return s.inner.Close()
}

// settle records the terminal state and releases held resources exactly once.
func (s *Stream) settle(terminal error) {
	s.settled = true
	s.terminal = terminal
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}
