package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestClientEnqueueSessionSweep(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	info, err := client.EnqueueSessionSweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, TaskSessionSweep, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
}
