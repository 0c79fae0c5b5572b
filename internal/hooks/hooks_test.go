package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func requestRecord(typ domain.RequestType) domain.CallbackRecord {
	return domain.CallbackRecord{Kind: domain.CallbackRequest, Type: typ, InvocationID: "inv-1"}
}

func TestManager_OnRequest_And_Emit(t *testing.T) {
	m := testManager()

	var got domain.CallbackRecord
	m.OnRequest(domain.ToolCalls, "test", func(_ context.Context, rec domain.CallbackRecord) error {
		got = rec
		return nil
	})

	m.Emit(context.Background(), requestRecord(domain.ToolCalls))
	assert.Equal(t, domain.ToolCalls, got.Type)
	assert.Equal(t, "inv-1", got.InvocationID)
}

func TestManager_Emit_MatchesKindAndType(t *testing.T) {
	m := testManager()

	var calls atomic.Int32
	m.OnResponse(domain.ToolCalls, "resp", func(_ context.Context, _ domain.CallbackRecord) error {
		calls.Add(1)
		return nil
	})
	m.OnRequest(domain.FunctionCall, "other", func(_ context.Context, _ domain.CallbackRecord) error {
		calls.Add(1)
		return nil
	})

	m.Emit(context.Background(), requestRecord(domain.ToolCalls))
	assert.Equal(t, int32(0), calls.Load())
}

func TestManager_OnAny(t *testing.T) {
	m := testManager()

	var calls atomic.Int32
	m.OnAny("all", func(_ context.Context, _ domain.CallbackRecord) error {
		calls.Add(1)
		return nil
	})

	m.Emit(context.Background(), requestRecord(domain.StatusUpdate))
	m.Emit(context.Background(), domain.CallbackRecord{Kind: domain.CallbackResponse, Type: domain.Unknown})
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_Emit_ObserverFailureIsolated(t *testing.T) {
	m := testManager()

	var okCalled atomic.Bool
	m.OnRequest(domain.ToolCalls, "failing", func(_ context.Context, _ domain.CallbackRecord) error {
		return errors.New("observer broke")
	})
	m.OnRequest(domain.ToolCalls, "panicking", func(_ context.Context, _ domain.CallbackRecord) error {
		panic("observer exploded")
	})
	m.OnRequest(domain.ToolCalls, "ok", func(_ context.Context, _ domain.CallbackRecord) error {
		okCalled.Store(true)
		return nil
	})

	m.Emit(context.Background(), requestRecord(domain.ToolCalls))
	assert.True(t, okCalled.Load())
}

func TestManager_Emit_NoObservers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), requestRecord(domain.Hang))
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var removed, kept atomic.Int32
	m.OnAny("remove-me", func(_ context.Context, _ domain.CallbackRecord) error {
		removed.Add(1)
		return nil
	})
	m.OnRequest(domain.ToolCalls, "keep-me", func(_ context.Context, _ domain.CallbackRecord) error {
		kept.Add(1)
		return nil
	})

	m.Off("remove-me")
	m.Emit(context.Background(), requestRecord(domain.ToolCalls))

	assert.Equal(t, int32(0), removed.Load())
	assert.Equal(t, int32(1), kept.Load())
	assert.Equal(t, 0, m.Count(domain.CallbackRequest, domain.AnyRequest))
}

func TestManager_Count_And_Subscriptions(t *testing.T) {
	m := testManager()
	noop := func(_ context.Context, _ domain.CallbackRecord) error { return nil }

	assert.Equal(t, 0, m.Count(domain.CallbackRequest, domain.ToolCalls))

	m.OnRequest(domain.ToolCalls, "h1", noop)
	m.OnRequest(domain.ToolCalls, "h2", noop)
	m.OnResponse(domain.EndOfCallReport, "h3", noop)

	assert.Equal(t, 2, m.Count(domain.CallbackRequest, domain.ToolCalls))
	assert.Equal(t, []string{"request:tool-calls", "response:end-of-call-report"}, m.Subscriptions())
}

func TestManager_NilIsEmpty(t *testing.T) {
	var m *Manager
	assert.False(t, m.Has(requestRecord(domain.ToolCalls)))
	assert.Empty(t, m.observersFor(requestRecord(domain.ToolCalls)))
}

func testDispatcher(global *Manager, cfg DispatcherConfig) *Dispatcher {
	d := NewDispatcher(global, cfg, logging.New(nil, "silent"))
	return d
}

func shutdown(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestDispatcher_RequestBeforeResponse(t *testing.T) {
	global := testManager()

	var (
		mu   sync.Mutex
		seen = make(map[string][]domain.CallbackKind)
	)
	record := func(_ context.Context, rec domain.CallbackRecord) error {
		mu.Lock()
		defer mu.Unlock()
		seen[rec.InvocationID] = append(seen[rec.InvocationID], rec.Kind)
		return nil
	}
	global.OnRequest(domain.ToolCalls, "order", record)
	global.OnResponse(domain.ToolCalls, "order", record)

	d := testDispatcher(global, DispatcherConfig{Workers: 4, QueueSize: 1024, EnqueueTimeout: time.Second})
	d.Start()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: string(rune('A' + i))}
			assert.NoError(t, d.NotifyRequest(nil, rec))
			assert.NoError(t, d.NotifyResponse(nil, rec, func() ([]byte, error) {
				return []byte(`{"results":[]}`), nil
			}))
		}(i)
	}
	wg.Wait()
	shutdown(t, d)

	require.Len(t, seen, 50)
	for id, kinds := range seen {
		assert.Equal(t, []domain.CallbackKind{domain.CallbackRequest, domain.CallbackResponse}, kinds, id)
	}
}

func TestDispatcher_GlobalAndApplicationObservers(t *testing.T) {
	global := testManager()
	app := testManager()

	var globalCalls, appCalls atomic.Int32
	global.OnAny("g", func(_ context.Context, _ domain.CallbackRecord) error {
		globalCalls.Add(1)
		return nil
	})
	app.OnRequest(domain.FunctionCall, "a", func(_ context.Context, _ domain.CallbackRecord) error {
		appCalls.Add(1)
		return nil
	})

	d := testDispatcher(global, DispatcherConfig{})
	d.Start()
	require.NoError(t, d.NotifyRequest(app, domain.CallbackRecord{Type: domain.FunctionCall, InvocationID: "x"}))
	require.NoError(t, d.NotifyRequest(nil, domain.CallbackRecord{Type: domain.FunctionCall, InvocationID: "y"}))
	shutdown(t, d)

	assert.Equal(t, int32(2), globalCalls.Load())
	assert.Equal(t, int32(1), appCalls.Load())
	assert.Equal(t, int64(2), d.Delivered())
}

func TestDispatcher_LazyPayload(t *testing.T) {
	global := testManager()

	var payload atomic.Value
	global.OnResponse(domain.FunctionCall, "p", func(_ context.Context, rec domain.CallbackRecord) error {
		payload.Store(string(rec.Payload))
		return nil
	})

	d := testDispatcher(global, DispatcherConfig{Workers: 1})
	d.Start()
	require.NoError(t, d.NotifyResponse(nil,
		domain.CallbackRecord{Type: domain.FunctionCall, InvocationID: "x", Elapsed: time.Millisecond},
		func() ([]byte, error) { return []byte(`{"result":"ok"}`), nil }))
	shutdown(t, d)

	assert.Equal(t, `{"result":"ok"}`, payload.Load())
}

func TestDispatcher_LazyPayloadFailureSkipsObservers(t *testing.T) {
	global := testManager()

	var calls atomic.Int32
	global.OnResponse(domain.ToolCalls, "r", func(_ context.Context, _ domain.CallbackRecord) error {
		calls.Add(1)
		return nil
	})

	d := testDispatcher(global, DispatcherConfig{Workers: 1})
	d.Start()
	require.NoError(t, d.NotifyResponse(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"},
		func() ([]byte, error) { return nil, errors.New("marshal failed") }))
	require.NoError(t, d.NotifyResponse(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"},
		func() ([]byte, error) { panic("marshal exploded") }))
	require.NoError(t, d.NotifyResponse(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"},
		func() ([]byte, error) { return []byte(`{}`), nil }))
	shutdown(t, d)

	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_LazyPayloadNotBuiltWithoutObservers(t *testing.T) {
	d := testDispatcher(testManager(), DispatcherConfig{Workers: 1})
	d.Start()

	var built atomic.Bool
	require.NoError(t, d.NotifyResponse(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"},
		func() ([]byte, error) {
			built.Store(true)
			return nil, nil
		}))
	shutdown(t, d)

	assert.False(t, built.Load())
}

func TestDispatcher_SlowObserverDoesNotBlockOthers(t *testing.T) {
	global := testManager()

	release := make(chan struct{})
	fast := make(chan struct{})
	global.OnRequest(domain.ToolCalls, "slow", func(_ context.Context, _ domain.CallbackRecord) error {
		<-release
		return nil
	})
	global.OnRequest(domain.ToolCalls, "fast", func(_ context.Context, _ domain.CallbackRecord) error {
		close(fast)
		return nil
	})

	d := testDispatcher(global, DispatcherConfig{Workers: 1})
	d.Start()
	require.NoError(t, d.NotifyRequest(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"}))

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("fast observer was blocked by slow observer")
	}
	close(release)
	shutdown(t, d)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	global := testManager()

	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	global.OnRequest(domain.ToolCalls, "block", func(_ context.Context, _ domain.CallbackRecord) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-block
		return nil
	})

	d := testDispatcher(global, DispatcherConfig{Workers: 1, QueueSize: 1, EnqueueTimeout: 10 * time.Millisecond})
	d.Start()

	rec := domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"}
	require.NoError(t, d.NotifyRequest(nil, rec))
	<-entered
	require.NoError(t, d.NotifyRequest(nil, rec))

	err := d.NotifyRequest(nil, rec)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), d.Dropped())

	close(block)
	shutdown(t, d)
}

func TestDispatcher_ShutdownDrainsQueue(t *testing.T) {
	global := testManager()

	var calls atomic.Int32
	global.OnRequest(domain.ToolCalls, "count", func(_ context.Context, _ domain.CallbackRecord) error {
		calls.Add(1)
		return nil
	})

	d := testDispatcher(global, DispatcherConfig{Workers: 2, QueueSize: 100})
	for i := 0; i < 20; i++ {
		require.NoError(t, d.NotifyRequest(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: string(rune('a' + i))}))
	}
	assert.Equal(t, 20, d.Pending())

	// Shutdown starts workers that were never started and drains.
	shutdown(t, d)
	assert.Equal(t, int32(20), calls.Load())

	err := d.NotifyRequest(nil, domain.CallbackRecord{Type: domain.ToolCalls})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	assert.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_ShutdownTimeout(t *testing.T) {
	global := testManager()

	entered := make(chan struct{})
	global.OnRequest(domain.ToolCalls, "wait", func(ctx context.Context, _ domain.CallbackRecord) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})

	d := testDispatcher(global, DispatcherConfig{Workers: 1})
	d.Start()
	require.NoError(t, d.NotifyRequest(nil, domain.CallbackRecord{Type: domain.ToolCalls, InvocationID: "a"}))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
