package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublisherPublishesJSON(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "showcase-runs")
	require.NoError(t, err)

	pub := New(topic)
	defer pub.Stop()

	id, err := pub.Publish(ctx, "run.completed", map[string]any{"run_id": "r1", "records": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "run.completed", msgs[0].Attributes["event"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "r1", body["run_id"])
	assert.EqualValues(t, 3, body["records"])
}

func TestPublisherWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "run.completed", nil)
	require.Error(t, err)
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	pub := &Publisher{topic: &pubsub.Topic{}}
	_, err := pub.Publish(context.Background(), "run.completed", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}
