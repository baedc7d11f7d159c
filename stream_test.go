package aigate

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	aierrors "github.com/13108387302/aigate/pkg/errors"
	"github.com/13108387302/aigate/pkg/types"
	"github.com/13108387302/aigate/providers/mock"
)

func drainStream(t *testing.T, s *Stream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}

func TestStream_DeliversAllChunks(t *testing.T) {
	const content = "a reply long enough to span several chunks"
	p := mock.New(mock.WithContent(content), mock.WithChunkSize(7))
	o := newTestOrchestrator(t, WithProviderInstance(p))

	s, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeChat, "hi"))
	if err != nil {
		t.Fatalf("ProcessRequestStream() error = %v", err)
	}
	got, err := drainStream(t, s)
	if err != io.EOF {
		t.Fatalf("terminal error = %v, want io.EOF", err)
	}
	if got != content {
		t.Errorf("streamed content = %q, want %q", got, content)
	}

	stats := o.Statistics()
	if stats.TotalRequests != 1 || stats.TotalSuccesses != 1 {
		t.Errorf("stats = %d/%d, want 1/1", stats.TotalRequests, stats.TotalSuccesses)
	}
	if stats.ActiveRequests != 0 {
		t.Errorf("ActiveRequests = %d, want 0 after stream completion", stats.ActiveRequests)
	}
	if got := stats.ProviderStats["mock"].SuccessRate; got != 1.0 {
		t.Errorf("provider SuccessRate = %v, want 1.0", got)
	}
}

func TestStream_TerminalStateSticks(t *testing.T) {
	p := mock.New(mock.WithContent("short"))
	o := newTestOrchestrator(t, WithProviderInstance(p))

	s, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeChat, "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := drainStream(t, s); err != io.EOF {
		t.Fatalf("terminal error = %v, want io.EOF", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Recv(); err != io.EOF {
			t.Fatalf("Recv() after EOF = %v, want io.EOF", err)
		}
	}
	// A settled stream only records one success.
	if got := o.Statistics().TotalSuccesses; got != 1 {
		t.Errorf("TotalSuccesses = %d, want 1", got)
	}
}

func TestStream_BypassesCache(t *testing.T) {
	p := mock.New(mock.WithContent("fresh every time"))
	o := newTestOrchestrator(t, WithProviderInstance(p), WithCacheEnabled(true))

	// A cached non-streaming response must not be replayed for a stream,
	// and a stream must not seed the cache.
	req := types.NewRequest(types.TypeGenerate, "the same prompt")
	if _, err := o.RouteRequest(context.Background(), req, ""); err != nil {
		t.Fatal(err)
	}

	s, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeGenerate, "the same prompt"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := drainStream(t, s); err != io.EOF {
		t.Fatal(err)
	}
	if p.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2 (stream must bypass the cache)", p.Calls())
	}
	if hits := o.Statistics().CacheHits; hits != 0 {
		t.Errorf("CacheHits = %d, want 0", hits)
	}
}

func TestStream_ProviderFailureAtStart(t *testing.T) {
	p := mock.New()
	p.FailWith(aierrors.NewNetwork("mock", "connect refused", nil))
	o := newTestOrchestrator(t, WithProviderInstance(p))

	_, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeChat, "hi"))
	if aierrors.KindOf(err) != aierrors.KindNetwork {
		t.Fatalf("KindOf(err) = %v, want network_error", aierrors.KindOf(err))
	}

	stats := o.Statistics()
	if stats.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", stats.TotalFailures)
	}
	if stats.ActiveRequests != 0 {
		t.Errorf("ActiveRequests = %d, want 0 after failed start", stats.ActiveRequests)
	}
}

func TestStream_Validation(t *testing.T) {
	o := newTestOrchestrator(t, WithProviderInstance(mock.New()))

	_, err := o.ProcessRequestStream(context.Background(), &types.Request{Type: types.TypeChat})
	if aierrors.KindOf(err) != aierrors.KindInvalidRequest {
		t.Fatalf("KindOf(err) = %v, want invalid_request", aierrors.KindOf(err))
	}
}

func TestStream_CloseBeforeEOFCountsAsCanceled(t *testing.T) {
	p := mock.New(mock.WithContent("plenty of content to stream"), mock.WithChunkSize(4))
	o := newTestOrchestrator(t, WithProviderInstance(p))

	s, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeChat, "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := s.Recv(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Recv() after Close = %v, want context.Canceled", err)
	}

	stats := o.Statistics()
	if stats.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", stats.TotalFailures)
	}
	if stats.ActiveRequests != 0 {
		t.Errorf("ActiveRequests = %d, want 0 after Close", stats.ActiveRequests)
	}
}

func TestStream_CancelMidStream(t *testing.T) {
	p := mock.New(mock.WithContent("plenty of content to stream"), mock.WithChunkSize(4))
	o := newTestOrchestrator(t, WithProviderInstance(p))

	req := types.NewRequest(types.TypeChat, "hi")
	s, err := o.ProcessRequestStream(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Recv(); err != nil {
		t.Fatalf("first Recv() error = %v", err)
	}
	if !o.CancelRequest(req.ID) {
		t.Fatal("CancelRequest returned false for an active stream")
	}
	if _, err := s.Recv(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Recv() after cancel = %v, want context.Canceled", err)
	}
	if len(o.ActiveRequests()) != 0 {
		t.Errorf("ActiveRequests() = %v, want empty", o.ActiveRequests())
	}
}

func TestStream_ChunkEvents(t *testing.T) {
	p := mock.New(mock.WithContent("twelve bytes"), mock.WithChunkSize(6))
	o := newTestOrchestrator(t, WithProviderInstance(p))

	var mu sync.Mutex
	counts := make(map[EventType]int)
	o.Subscribe(func(ev Event) {
		mu.Lock()
		counts[ev.Type]++
		mu.Unlock()
	})

	s, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeChat, "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := drainStream(t, s); err != io.EOF {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if counts[EventStreamStarted] != 1 {
		t.Errorf("stream_started events = %d, want 1", counts[EventStreamStarted])
	}
	if counts[EventStreamChunk] != 2 {
		t.Errorf("stream_chunk events = %d, want 2", counts[EventStreamChunk])
	}
	if counts[EventStreamCompleted] != 1 {
		t.Errorf("stream_completed events = %d, want 1", counts[EventStreamCompleted])
	}
}

func TestStream_ReleasesGateSlot(t *testing.T) {
	p := mock.New(mock.WithContent("only one at a time"))
	o := newTestOrchestrator(t, WithProviderInstance(p), WithMaxConcurrentRequests(1))

	s, err := o.ProcessRequestStream(context.Background(), types.NewRequest(types.TypeChat, "hi"))
	if err != nil {
		t.Fatal(err)
	}

	// The stream holds the only slot until it finishes.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := o.RouteRequest(ctx, types.NewRequest(types.TypeGenerate, "blocked"), ""); err == nil {
		t.Fatal("expected admission to fail while the stream holds the slot")
	}

	if _, err := drainStream(t, s); err != io.EOF {
		t.Fatal(err)
	}
	if _, err := o.RouteRequest(context.Background(), types.NewRequest(types.TypeGenerate, "admitted"), ""); err != nil {
		t.Fatalf("RouteRequest() after stream completion error = %v", err)
	}
}
