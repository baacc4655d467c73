package wasmhost

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invakid404/cel-playground/internal/common"
)

func newHost(t *testing.T, wasm []byte, config Config) *Host {
	t.Helper()
	h, err := New(context.Background(), wasm, config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close(context.Background()) })
	return h
}

func TestHost_Call(t *testing.T) {
	h := newHost(t, constModule, DefaultConfig())

	resp, err := h.Call(context.Background(), "cel", map[string]string{"cel": "1 + 1", "data": "{}"})
	require.NoError(t, err)
	assert.Equal(t, common.Response{Output: "2"}, resp)

	// Every call gets a fresh instance
	resp, err = h.Call(context.Background(), "cel", map[string]string{"cel": "1 + 1"})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Output)
}

func TestHost_RequestEncoding(t *testing.T) {
	h := newHost(t, echoModule, DefaultConfig())

	out, err := h.call(context.Background(), mustJSON(t, common.Request{Mode: "vap", Args: map[string]string{"vap": "spec: {}"}}))
	require.NoError(t, err)

	var req common.Request
	require.NoError(t, json.Unmarshal(out, &req))
	assert.Equal(t, "vap", req.Mode)
	assert.Equal(t, map[string]string{"vap": "spec: {}"}, req.Args)
}

func TestHost_RequestTooLarge(t *testing.T) {
	h := newHost(t, echoModule, DefaultConfig())

	big := make([]byte, 70000)
	_, err := h.call(context.Background(), big)
	assert.ErrorContains(t, err, "not enough memory")
}

func TestHost_Timeout(t *testing.T) {
	h := newHost(t, loopModule, Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := h.Call(context.Background(), "cel", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	resp := h.Evaluate(context.Background(), "cel", nil)
	assert.True(t, resp.IsError)
}

func TestHost_InvalidModule(t *testing.T) {
	_, err := New(context.Background(), emptyModule, DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrNoEvalExport)

	_, err = New(context.Background(), []byte("not wasm"), DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = Load(context.Background(), "testdata/missing.wasm", DefaultConfig(), nil)
	assert.Error(t, err)
}

type failingCaller struct {
	calls int
}

func (f *failingCaller) Call(context.Context, string, map[string]string) (common.Response, error) {
	f.calls++
	return common.Response{}, errors.New("trap")
}

func TestBreaker(t *testing.T) {
	caller := &failingCaller{}
	config := DefaultBreakerConfig()
	config.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 2
	}
	b := NewBreaker(caller, config, nil)

	for i := 0; i < 2; i++ {
		resp := b.Evaluate(context.Background(), "cel", nil)
		assert.True(t, resp.IsError)
		assert.Contains(t, resp.Output, "trap")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	resp := b.Evaluate(context.Background(), "cel", nil)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Output, gobreaker.ErrOpenState.Error())
	assert.Equal(t, 2, caller.calls)
}

func TestBreaker_PassesResponses(t *testing.T) {
	b := NewBreaker(newHost(t, constModule, DefaultConfig()), DefaultBreakerConfig(), nil)

	resp := b.Evaluate(context.Background(), "cel", map[string]string{"cel": "1 + 1"})
	assert.Equal(t, common.Response{Output: "2"}, resp)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
