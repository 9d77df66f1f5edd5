// Package archive_test tests the NATS audio archive.
package archive_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/elevenlabs-service/internal/archive"
)

const (
	testBucket  = "TEST_AUDIO"
	testSubject = "audio.chunk.created"
)

// startTestServer starts an in-memory NATS server for testing purposes.
func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func TestNatsArchive_StoreAndAnnounce(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	subscription, err := natsConnection.SubscribeSync(testSubject)
	require.NoError(t, err)

	audioArchive, err := archive.New(natsConnection, jetstreamContext, testBucket, testSubject, newTestLogger(t))
	require.NoError(t, err)

	audioData := []byte("fake-mpeg-audio-bytes")

	key, err := audioArchive.Store(context.Background(), audioData)
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.True(t, strings.HasSuffix(key, ".mp3"))

	// The stored object round-trips.
	store, err := jetstreamContext.ObjectStore(testBucket)
	require.NoError(t, err)

	stored, err := store.GetBytes(key)
	require.NoError(t, err)
	assert.Equal(t, audioData, stored)

	// The announcement event names the stored key.
	msg, err := subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var event events.AudioChunkCreatedEvent

	err = json.Unmarshal(msg.Data, &event)
	require.NoError(t, err)

	assert.Equal(t, key, event.AudioKey)
	assert.NotEmpty(t, event.Header.EventID)
	assert.NotEmpty(t, event.Header.WorkflowID)
}

func TestNatsArchive_BindsToExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	log := newTestLogger(t)

	first, err := archive.New(natsConnection, jetstreamContext, testBucket, testSubject, log)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := archive.New(natsConnection, jetstreamContext, testBucket, testSubject, log)
	require.NoError(t, err)
	require.NotNil(t, second)
}
