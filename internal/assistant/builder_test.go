package assistant

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/invoke"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/soyeahso/voicehook/internal/registry"
	"github.com/soyeahso/voicehook/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func silent() *logging.Logger { return logging.New(nil, "silent") }

func TestCallableName(t *testing.T) {
	a := CallableName("getWeatherByCity", "call-1", "demo")
	b := CallableName("getWeatherByCity", "call-1", "demo")
	c := CallableName("getWeatherByCity", "call-2", "demo")
	d := CallableName("getWeatherByCity", "call-1", "other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Regexp(t, `^getWeatherByCity_[0-9a-f]{8}$`, a)
}

func TestNewBuilder_UnknownTool(t *testing.T) {
	_, err := NewBuilder("demo", Template{Tools: []string{"nope"}}, DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = NewBuilder("demo", Template{Functions: []string{"nope"}}, DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestNewBuilder_DuplicateTool(t *testing.T) {
	_, err := NewBuilder("demo", Template{Tools: []string{"echo", "echo"}}, DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrDuplicateTool)

	_, err = NewBuilder("demo", Template{Functions: []string{"echo", "currentTime", "echo"}}, DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrDuplicateTool)

	// One tool may back both a tool and a function.
	_, err = NewBuilder("demo", Template{Tools: []string{"echo"}, Functions: []string{"echo"}}, DefaultCatalog(), silent())
	assert.NoError(t, err)
}

func TestApplicationRejectsDuplicateTool(t *testing.T) {
	_, err := Application(config.ApplicationConfig{Name: "demo", Path: "/demo", Tools: []string{"echo", "echo"}},
		DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestBuildAssistant_RepeatedRequest(t *testing.T) {
	router := webhook.NewRouter(registry.New(registry.Tools), registry.New(registry.Functions), silent())
	b, err := NewBuilder("demo", Template{Tools: []string{"echo"}}, DefaultCatalog(), silent())
	require.NoError(t, err)
	app := &webhook.Application{Name: "demo", Path: "/demo", Assistant: b, Manual: registry.NewTable()}

	raw := []byte(`{"message":{"type":"assistant-request","call":{"id":"c2"}}}`)
	first, err := router.Handle(context.Background(), app, raw)
	require.NoError(t, err)
	retry, err := router.Handle(context.Background(), app, raw)
	require.NoError(t, err)
	assert.JSONEq(t, string(first.(json.RawMessage)), string(retry.(json.RawMessage)))

	_, err = router.Tools().Lookup("c2", CallableName("echo", "c2", "demo"))
	assert.NoError(t, err)
}

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"currentTime", "echo", "getWeatherByCity"}, c.Names())
	assert.Error(t, c.Add(Echo()))

	_, ok := c.Get("echo")
	assert.True(t, ok)
}

func TestBuildAssistant_EndToEnd(t *testing.T) {
	tools := registry.New(registry.Tools)
	functions := registry.New(registry.Functions)
	router := webhook.NewRouter(tools, functions, silent())

	b, err := NewBuilder("demo", Template{
		Assistant: map[string]any{
			"name":         "Weather bot",
			"firstMessage": "Hi there",
			"model":        map[string]any{"provider": "openai", "model": "gpt-4o"},
		},
		Tools:     []string{"getWeatherByCity"},
		Functions: []string{"echo"},
	}, DefaultCatalog(), silent())
	require.NoError(t, err)

	app := &webhook.Application{Name: "demo", Assistant: b}
	resp, err := router.Handle(context.Background(), app,
		[]byte(`{"message":{"type":"assistant-request","call":{"id":"call-123"}}}`))
	require.NoError(t, err)

	raw, ok := resp.(json.RawMessage)
	require.True(t, ok)
	doc := gjson.ParseBytes(raw)
	assert.Equal(t, "Weather bot", doc.Get("assistant.name").String())
	assert.Equal(t, "gpt-4o", doc.Get("assistant.model.model").String())

	weather := CallableName("getWeatherByCity", "call-123", "demo")
	assert.Equal(t, "function", doc.Get("assistant.model.tools.0.type").String())
	assert.Equal(t, weather, doc.Get("assistant.model.tools.0.function.name").String())
	assert.Equal(t, []any{"city", "state"}, doc.Get("assistant.model.tools.0.function.parameters.required").Value())
	assert.Equal(t, CallableName("echo", "call-123", "demo"), doc.Get("assistant.model.functions.0.name").String())

	// The advertised name resolves in a later tool-calls callback.
	out, err := router.Handle(context.Background(), app, []byte(`{"message":{"type":"tool-calls","call":{"id":"call-123"},
		"toolCallList":[{"id":"t1","function":{"name":"`+weather+`","arguments":{"city":"Chicago","state":"Illinois"}}}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "The weather in city Chicago and state Illinois is windy", out.(webhook.ToolCallsResponse).Results[0].Result)
}

func TestBuildAssistant_EmptyTemplate(t *testing.T) {
	b, err := NewBuilder("demo", Template{}, DefaultCatalog(), silent())
	require.NoError(t, err)

	reg := &fakeRegistrar{key: "call-1"}
	out, err := b.BuildAssistant(context.Background(), &webhook.Request{SessionKey: "call-1"}, reg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assistant":{}}`, string(out))
}

func TestBuildAssistant_RegistrationError(t *testing.T) {
	b, err := NewBuilder("demo", Template{Tools: []string{"echo"}}, DefaultCatalog(), silent())
	require.NoError(t, err)

	reg := &fakeRegistrar{key: "call-1", err: registry.ErrDuplicateRegistration}
	_, err = b.BuildAssistant(context.Background(), &webhook.Request{SessionKey: "call-1"}, reg)
	assert.ErrorIs(t, err, registry.ErrDuplicateRegistration)
}

type fakeRegistrar struct {
	key   domain.SessionKey
	err   error
	names []string
}

func (f *fakeRegistrar) SessionKey() domain.SessionKey { return f.key }

func (f *fakeRegistrar) RegisterTool(name string, _ invoke.Tool) error {
	f.names = append(f.names, name)
	return f.err
}

func (f *fakeRegistrar) RegisterFunction(name string, _ invoke.Tool) error {
	f.names = append(f.names, name)
	return f.err
}

func TestBuiltinTools(t *testing.T) {
	iv := invoke.NewInvoker(silent())
	call := func(tool invoke.Tool, args string) domain.InvocationOutcome {
		return iv.Invoke(context.Background(), registry.Standalone(tool.Name(), tool), []byte(args), nil)
	}

	out := call(WeatherByCity(), `{"city":"Austin","state":"Texas"}`)
	assert.Equal(t, "The weather in city Austin and state Texas is windy", out.Result)

	out = call(WeatherByCity(), `{}`)
	assert.True(t, out.Failed)
	require.Len(t, out.Messages, 1)

	fixed := func() time.Time { return time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC) }
	out = call(CurrentTime(fixed), `{}`)
	assert.Equal(t, "Monday, March 2, 2026 3:04 PM UTC", out.Result)

	out = call(CurrentTime(fixed), `{"timezone":"Not/AZone"}`)
	assert.True(t, out.Failed)

	out = call(Echo(), `{"text":"hello"}`)
	assert.Equal(t, "hello", out.Result)
}

func TestApplicationFromConfig(t *testing.T) {
	app, err := Application(config.ApplicationConfig{
		Name:        "clock",
		Path:        "/clock",
		Secret:      "s",
		Tools:       []string{"echo"},
		ManualTools: []string{"currentTime"},
	}, DefaultCatalog(), silent())
	require.NoError(t, err)

	assert.Equal(t, "clock", app.Name)
	assert.Equal(t, "/clock", app.Path)
	assert.Equal(t, "s", app.Secret)
	assert.NotNil(t, app.Hooks)
	assert.Equal(t, []string{"currentTime"}, app.Manual.Names())

	_, err = Application(config.ApplicationConfig{Name: "x", ManualTools: []string{"nope"}}, DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = Applications([]config.ApplicationConfig{{Name: "a"}, {Name: "b", Tools: []string{"nope"}}}, DefaultCatalog(), silent())
	assert.ErrorIs(t, err, ErrUnknownTool)
}
