// Package archive persists generated audio to a NATS JetStream object store
// and announces each stored clip with an event.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const audioKeySuffix = ".mp3"

// NatsArchive stores generated audio in a JetStream object store bucket and
// publishes an AudioChunkCreatedEvent per stored clip.
type NatsArchive struct {
	natsConnection *nats.Conn
	store          nats.ObjectStore
	bucket         string
	subject        string
	log            *logger.Logger
}

// New creates and initializes a NatsArchive. The bucket is created on first
// use; when it already exists the archive binds to it.
func New(
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	bucketName string,
	subject string,
	log *logger.Logger,
) (*NatsArchive, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Generated audio for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsArchive{
		natsConnection: natsConnection,
		store:          store,
		bucket:         bucketName,
		subject:        subject,
		log:            log,
	}, nil
}

// Store uploads the audio under a fresh key and publishes the announcement
// event. A publish failure does not lose the stored object; it is logged and
// the key is still returned.
func (a *NatsArchive) Store(_ context.Context, audio []byte) (string, error) {
	key := uuid.NewString() + audioKeySuffix

	_, err := a.store.PutBytes(key, audio)
	if err != nil {
		return "", fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, a.bucket, err)
	}

	publishErr := a.publishCreatedEvent(key)
	if publishErr != nil {
		a.log.Warn("Failed to publish audio created event for key '%s': %v", key, publishErr)
	}

	return key, nil
}

func (a *NatsArchive) publishCreatedEvent(key string) error {
	event := events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey:   key,
		PageNumber: 0,
		TotalPages: 0,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio created event: %w", err)
	}

	err = a.natsConnection.Publish(a.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", a.subject, err)
	}

	return nil
}
