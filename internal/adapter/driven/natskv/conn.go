// Package natskv implements the record and run stores on NATS JetStream
// key-value buckets.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// runRetention bounds how long run history is kept in its bucket.
const runRetention = 90 * 24 * time.Hour

// Conn owns the NATS connection and the two buckets the stores use.
type Conn struct {
	nc      *nats.Conn
	records jetstream.KeyValue
	runs    jetstream.KeyValue
}

// Connect dials natsURL and creates (or updates) the record bucket and its
// "<bucket>-runs" companion.
func Connect(ctx context.Context, natsURL, bucket string) (*Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("prreaper"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	records, err := createBucket(ctx, js, bucket, 0)
	if err != nil {
		nc.Close()
		return nil, err
	}
	runs, err := createBucket(ctx, js, bucket+"-runs", runRetention)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Conn{nc: nc, records: records, runs: runs}, nil
}

func createBucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  name,
		Storage: jetstream.FileStorage,
		TTL:     ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("creating KV bucket %s: %w", name, err)
	}
	return kv, nil
}

// Ping reports whether the connection to the server is currently up.
func (c *Conn) Ping(_ context.Context) error {
	if status := c.nc.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}

// Close drains the connection so in-flight requests complete.
func (c *Conn) Close() error {
	return c.nc.Drain()
}

// keys lists every key in kv; an empty bucket yields no keys and no error.
func keys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	lister, err := kv.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var out []string
	for k := range lister.Keys() {
		out = append(out, k)
	}
	return out, nil
}

// isNotFound reports whether err means the key or bucket holds no value.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
