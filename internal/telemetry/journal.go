package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"LineBot/internal/model"
)

var bucketTelemetry = []byte("telemetry")

// ErrEmpty is returned by Latest on a journal with no entries.
var ErrEmpty = errors.New("journal: no telemetry")

// keyLayout is RFC 3339 with fixed-width nanoseconds so keys sort in time order.
const keyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal appends telemetry snapshots to a bbolt file keyed by wall time.
type Journal struct {
	db  *bbolt.DB
	log zerolog.Logger
	q   *queue[model.Telemetry]

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string, log zerolog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTelemetry)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	j := &Journal{db: db, log: log, now: time.Now}
	j.q = startQueue(32, func(t model.Telemetry) {
		if err := j.Append(t); err != nil {
			j.log.Error().Err(err).Msg("journal append")
		}
	})
	return j, nil
}

// key returns a strictly increasing key for the current time.
func (j *Journal) key() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := j.now().UTC()
	if !t.After(j.last) {
		t = j.last.Add(time.Nanosecond)
	}
	j.last = t
	return []byte(t.Format(keyLayout))
}

// Append stores t synchronously.
func (j *Journal) Append(t model.Telemetry) error {
	v, err := json.Marshal(t)
	if err != nil {
		return err
	}
	k := j.key()
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTelemetry).Put(k, v)
	})
}

// Latest returns the most recent snapshot and its key.
func (j *Journal) Latest() (model.Telemetry, string, error) {
	var (
		t   model.Telemetry
		key string
	)
	err := j.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(bucketTelemetry).Cursor().Last()
		if v == nil {
			return ErrEmpty
		}
		key = string(k)
		return json.Unmarshal(v, &t)
	})
	return t, key, err
}

// Count returns the number of stored snapshots.
func (j *Journal) Count() int {
	n := 0
	_ = j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketTelemetry).Stats().KeyN
		return nil
	})
	return n
}

// Publish implements Publisher.
func (j *Journal) Publish(t model.Telemetry) { j.q.offer(t) }

// IsConnected implements Publisher.
func (j *Journal) IsConnected() bool { return true }

// Close flushes pending writes and closes the file.
func (j *Journal) Close() error {
	j.q.close()
	return j.db.Close()
}
