package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func echoTool(name string) invoke.Tool {
	return invoke.Func(name, "echo", []invoke.Param{{Name: "text", Type: invoke.String}},
		func(_ context.Context, args invoke.Args) (string, error) {
			return args.String("text"), nil
		})
}

func TestRegisterAndLookup(t *testing.T) {
	r := New(Tools)
	tool := echoTool("echo")

	require.NoError(t, r.Register("call-1", "echo_1", tool))

	rec, err := r.Lookup("call-1", "echo_1")
	require.NoError(t, err)
	assert.Equal(t, "echo_1", rec.Name())
	assert.Same(t, tool, rec.Tool())
	assert.Equal(t, "*invoke.FuncTool.echo", rec.QualifiedName())
	assert.Len(t, rec.Params(), 1)
	assert.True(t, r.Contains("call-1"))
	assert.Equal(t, 1, r.Len())
}

func TestRegister_Duplicate(t *testing.T) {
	r := New(Tools)
	first := echoTool("echo")
	require.NoError(t, r.Register("call-1", "echo", first))

	err := r.Register("call-1", "echo", echoTool("other"))
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	rec, err := r.Lookup("call-1", "echo")
	require.NoError(t, err)
	assert.Same(t, first, rec.Tool())

	// Same name under another session is fine.
	assert.NoError(t, r.Register("call-2", "echo", echoTool("echo")))
}

func TestRegister_Rejects(t *testing.T) {
	r := New(Tools)

	err := r.Register("", "echo", echoTool("echo"))
	assert.ErrorIs(t, err, ErrEmptySessionKey)

	bad := invoke.Func("bad", "", []invoke.Param{{Name: "x", Type: invoke.ParamType(42)}},
		func(_ context.Context, _ invoke.Args) (string, error) { return "", nil })
	err = r.Register("call-1", "bad", bad)
	assert.ErrorIs(t, err, invoke.ErrUnsupportedParameterType)
	assert.False(t, r.Contains("call-1"))
}

func TestLookup_NotFound(t *testing.T) {
	r := New(Functions)
	require.NoError(t, r.Register("call-1", "a", echoTool("a")))

	_, err := r.Lookup("call-2", "a")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Lookup("call-1", "b")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Lookup("", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	r := New(Tools)
	require.NoError(t, r.Register("call-1", "a", echoTool("a")))
	require.NoError(t, r.Register("call-1", "b", echoTool("b")))

	e, ok := r.Remove("call-1")
	require.True(t, ok)
	assert.Equal(t, domain.SessionKey("call-1"), e.Key)
	assert.Equal(t, []string{"a", "b"}, e.Names())
	assert.Equal(t, 2, e.Len())
	assert.False(t, r.Contains("call-1"))

	_, ok = r.Remove("call-1")
	assert.False(t, ok)
}

func TestSweepOlderThan(t *testing.T) {
	clock := newFakeClock()
	r := New(Tools, WithClock(clock.Now))

	require.NoError(t, r.Register("old", "a", echoTool("a")))
	clock.Advance(30 * time.Minute)
	require.NoError(t, r.Register("young", "a", echoTool("a")))

	clock.Advance(29 * time.Minute)
	assert.Equal(t, 0, r.SweepOlderThan(time.Hour))
	assert.True(t, r.Contains("old"))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, r.SweepOlderThan(time.Hour))
	assert.False(t, r.Contains("old"))
	assert.True(t, r.Contains("young"))

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, r.SweepOlderThan(time.Hour))
	assert.Equal(t, 0, r.Len())
}

func TestSweep_LaterRegistrationKeepsCreationTime(t *testing.T) {
	clock := newFakeClock()
	r := New(Tools, WithClock(clock.Now))

	require.NoError(t, r.Register("call-1", "a", echoTool("a")))
	clock.Advance(50 * time.Minute)
	require.NoError(t, r.Register("call-1", "b", echoTool("b")))
	clock.Advance(10 * time.Minute)

	assert.Equal(t, 1, r.SweepOlderThan(time.Hour))
}

func TestClear(t *testing.T) {
	r := New(Tools, WithShards(4))
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Register(domain.SessionKey(fmt.Sprintf("call-%d", i)), "a", echoTool("a")))
	}
	assert.Equal(t, 10, r.Len())
	assert.Equal(t, 10, r.Clear())
	assert.Equal(t, 0, r.Len())
}

func TestSnapshot(t *testing.T) {
	clock := newFakeClock()
	r := New(Tools, WithClock(clock.Now))

	assert.NotNil(t, r.Snapshot())

	require.NoError(t, r.Register("call-1", "b", echoTool("b")))
	require.NoError(t, r.Register("call-1", "a", echoTool("a")))
	clock.Advance(time.Minute)
	require.NoError(t, r.Register("call-2", "c", echoTool("c")))

	rec, err := r.Lookup("call-1", "a")
	require.NoError(t, err)
	rec.CountInvocation()
	rec.CountInvocation()

	clock.Advance(time.Minute)
	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.SessionKey("call-1"), snap[0].SessionKey)
	assert.Equal(t, "2m0s", snap[0].Age)
	require.Len(t, snap[0].Callables, 2)
	assert.Equal(t, "a", snap[0].Callables[0].Name)
	assert.Equal(t, int64(2), snap[0].Callables[0].Invocations)
	assert.Equal(t, domain.SessionKey("call-2"), snap[1].SessionKey)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New(Tools)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := domain.SessionKey(fmt.Sprintf("call-%d", i%10))
			name := fmt.Sprintf("tool-%d", i)
			assert.NoError(t, r.Register(key, name, echoTool(name)))
			rec, err := r.Lookup(key, name)
			if assert.NoError(t, err) {
				rec.CountInvocation()
			}
			r.SweepOlderThan(time.Hour)
			r.Snapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
}

func TestRegistry_ConcurrentDuplicate(t *testing.T) {
	r := New(Tools)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register("call-1", "same", echoTool("same")) == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
}

func TestTable(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(echoTool("echo")))
	require.NoError(t, tbl.AddAs("alias", echoTool("echo")))

	err := tbl.Add(echoTool("echo"))
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	rec, ok := tbl.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", rec.Name())

	_, ok = tbl.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"alias", "echo"}, tbl.Names())

	rec.CountInvocation()
	infos := tbl.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, int64(1), infos[1].Invocations)
}

func TestRecord_ImplementsCallable(t *testing.T) {
	var _ invoke.Callable = (*Record)(nil)

	rec := Standalone("echo", echoTool("echo"))
	out := invoke.NewInvoker(logging.Nop()).Invoke(context.Background(), rec, []byte(`{"text":"hi"}`), nil)
	assert.Equal(t, "hi", out.Result)
	assert.Equal(t, int64(1), rec.Invocations())
}
