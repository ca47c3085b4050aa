package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Payload []byte `json:"payload"`
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer()
	s.Register("Echo.Bytes", func(ctx context.Context, req json.RawMessage) (any, error) {
		var args echoArgs
		if err := json.Unmarshal(req, &args); err != nil {
			return nil, err
		}
		return args, nil
	})
	s.Register("Echo.Fail", func(ctx context.Context, req json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})
	s.Register("Echo.Block", func(ctx context.Context, req json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	addr, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, addr.String()
}

func TestCallRoundTrip(t *testing.T) {
	s, addr := startServer(t)
	assert.Equal(t, 3, s.MethodCount())

	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	var reply echoArgs
	require.NoError(t, c.Call(context.Background(), "Echo.Bytes", echoArgs{Payload: []byte("cat\x00dog\x00")}, &reply))
	assert.Equal(t, []byte("cat\x00dog\x00"), reply.Payload)

	// the connection stays usable for sequential calls
	require.NoError(t, c.Call(context.Background(), "Echo.Bytes", echoArgs{Payload: []byte{1}}, &reply))
	assert.Equal(t, []byte{1}, reply.Payload)
}

func TestCallErrors(t *testing.T) {
	_, addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "Echo.Fail", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	err = c.Call(context.Background(), "Echo.Missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}

func TestCallContextCancel(t *testing.T) {
	_, addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.Call(ctx, "Echo.Block", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopUnblocksHandlers(t *testing.T) {
	s, addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.Call(context.Background(), "Echo.Block", nil, nil) }()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked call did not return after Stop")
	}
}

func TestShutdownWaitsForClients(t *testing.T) {
	s, addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)

	var reply echoArgs
	require.NoError(t, c.Call(context.Background(), "Echo.Bytes", echoArgs{Payload: []byte("x")}, &reply))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned while a client was connected")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, c.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return after the client hung up")
	}
}
