package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

func TestDeliver_InOrderUntilClosed(t *testing.T) {
	inbox := make(chan transport.Message, 3)
	for _, p := range []string{"a", "b", "c"} {
		inbox <- transport.Message{Data: []byte(p)}
	}
	close(inbox)

	var got []string
	err := deliver(context.Background(), inbox, func(_ context.Context, msg transport.Message) error {
		got = append(got, string(msg.Data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDeliver_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inbox := make(chan transport.Message)

	done := make(chan error, 1)
	go func() {
		done <- deliver(ctx, inbox, func(context.Context, transport.Message) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("deliver did not return after cancel")
	}
}

func TestDeliver_HandlerError(t *testing.T) {
	inbox := make(chan transport.Message, 1)
	inbox <- transport.Message{}

	boom := errors.New("boom")
	err := deliver(context.Background(), inbox, func(context.Context, transport.Message) error { return boom })
	assert.ErrorIs(t, err, boom)
}
