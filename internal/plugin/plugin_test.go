package plugin

import (
	"context"
	"testing"

	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlugin struct {
	id         string
	initErr    error
	closeErr   error
	initCalls  int
	closeCalls int
	closed     *[]string
}

func (p *testPlugin) ID() string { return p.id }
func (p *testPlugin) Init(_ context.Context, _ API) error {
	p.initCalls++
	return p.initErr
}
func (p *testPlugin) Close() error {
	p.closeCalls++
	if p.closed != nil {
		*p.closed = append(*p.closed, p.id)
	}
	return p.closeErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func testRegistry() (*Registry, *hooks.Manager) {
	log := logging.Nop()
	hm := hooks.NewManager(log)
	return NewRegistry(hm, log), hm
}

func TestRegistry_Register(t *testing.T) {
	reg, _ := testRegistry()
	require.NoError(t, reg.Register(&testPlugin{id: "test"}))
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg, _ := testRegistry()
	p := &testPlugin{id: "test"}

	require.NoError(t, reg.Register(p))
	err := reg.Register(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Get(t *testing.T) {
	reg, _ := testRegistry()
	require.NoError(t, reg.Register(&testPlugin{id: "test"}))

	assert.Equal(t, "test", reg.Get("test").ID())
	assert.Nil(t, reg.Get("nonexistent"))
}

func TestRegistry_List(t *testing.T) {
	reg, _ := testRegistry()
	require.NoError(t, reg.Register(&testPlugin{id: "a"}))
	require.NoError(t, reg.Register(&testPlugin{id: "b"}))

	assert.Equal(t, []string{"a", "b"}, reg.List())
}

func TestRegistry_InitAll(t *testing.T) {
	reg, _ := testRegistry()
	p1 := &testPlugin{id: "a"}
	p2 := &testPlugin{id: "b"}
	require.NoError(t, reg.Register(p1))
	require.NoError(t, reg.Register(p2))

	require.NoError(t, reg.InitAll(context.Background()))
	assert.Equal(t, 1, p1.initCalls)
	assert.Equal(t, 1, p2.initCalls)
}

func TestRegistry_InitAll_StopsAtFirstError(t *testing.T) {
	reg, _ := testRegistry()
	bad := &testPlugin{id: "bad", initErr: assert.AnError}
	after := &testPlugin{id: "after"}
	require.NoError(t, reg.Register(bad))
	require.NoError(t, reg.Register(after))

	err := reg.InitAll(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "bad")
	assert.Zero(t, after.initCalls)
}

func TestRegistry_CloseAll_ReverseOrder(t *testing.T) {
	reg, _ := testRegistry()
	var closed []string
	require.NoError(t, reg.Register(&testPlugin{id: "a", closed: &closed}))
	require.NoError(t, reg.Register(&testPlugin{id: "b", closed: &closed, closeErr: assert.AnError}))
	require.NoError(t, reg.Register(&testPlugin{id: "c", closed: &closed}))

	reg.CloseAll()
	assert.Equal(t, []string{"c", "b", "a"}, closed)
}

func TestObserver_SubscribesAllByDefault(t *testing.T) {
	reg, hm := testRegistry()
	require.NoError(t, reg.Register(&Observer{
		Name:    "events",
		Observe: func(context.Context, domain.CallbackRecord) error { return nil },
	}))
	require.NoError(t, reg.InitAll(context.Background()))

	assert.Equal(t, 1, hm.Count(domain.CallbackRequest, domain.AnyRequest))
	assert.Equal(t, 1, hm.Count(domain.CallbackResponse, domain.AnyRequest))
}

func TestObserver_KindAndType(t *testing.T) {
	reg, hm := testRegistry()
	closed := false
	require.NoError(t, reg.Register(&Observer{
		Name:    "reports",
		Kind:    domain.CallbackRequest,
		Type:    domain.EndOfCallReport,
		Observe: func(context.Context, domain.CallbackRecord) error { return nil },
		Closer:  closerFunc(func() error { closed = true; return nil }),
	}))
	require.NoError(t, reg.InitAll(context.Background()))

	assert.Equal(t, []string{"request:end-of-call-report"}, hm.Subscriptions())

	reg.CloseAll()
	assert.Empty(t, hm.Subscriptions())
	assert.True(t, closed)
}

func TestObserver_CloseWithoutInit(t *testing.T) {
	o := &Observer{Name: "idle"}
	assert.NoError(t, o.Close())
}
