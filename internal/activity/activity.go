// Package activity maintains the live activity feed: a bounded bbolt-backed
// recent-entries ring so a freshly connected client gets instant history
// without a database round trip, and a gorilla/websocket broadcaster for
// entries as they happen. Durable history beyond the ring lives in
// store.ActivityRepo; this package is the ephemeral, low-latency front of
// that pipeline (spec.md §6 "/system/activity").
//
// The ring storage and the client-set/broadcast shape both generalize
// trailarr-trailarr's own internal/bbolt.go KV bucket helpers and
// internal/tasks.go websocket client tracking.
package activity

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	bolt "go.etcd.io/bbolt"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/store"
)

var feedBucket = []byte("activity_feed")

// Entry is one normalized activity event.
type Entry struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	Kind       string    `json:"kind"`
	EntityType string    `json:"entityType"`
	EntityID   int64     `json:"entityId"`
	Message    string    `json:"message"`
}

// Feed is the ephemeral ring plus durable-log writer plus websocket fan-out.
type Feed struct {
	db      *bolt.DB
	repo    *store.ActivityRepo
	ringCap int

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
}

// New opens (or creates) the bbolt ring at dbPath, capped at ringCap
// entries, backed by repo for durable history beyond the ring.
func New(dbPath string, ringCap int, repo *store.ActivityRepo) (*Feed, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "open activity feed db")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(feedBucket)
		return err
	}); err != nil {
		return nil, errs.Wrap(errs.KindStorageQueryFailed, err, "create activity feed bucket")
	}
	return &Feed{
		db:      db,
		repo:    repo,
		ringCap: ringCap,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

func (f *Feed) Close() error { return f.db.Close() }

// Publish appends to the durable log, pushes the new entry into the bbolt
// ring (evicting the oldest if over ringCap), and broadcasts it to every
// connected websocket client.
func (f *Feed) Publish(ctx context.Context, kind, entityType string, entityID int64, message string) error {
	id, err := f.repo.Append(ctx, kind, entityType, entityID, message)
	if err != nil {
		return err
	}
	entry := Entry{ID: id, OccurredAt: time.Now(), Kind: kind, EntityType: entityType, EntityID: entityID, Message: message}

	if err := f.pushRing(entry); err != nil {
		return err
	}
	f.broadcast(entry)
	return nil
}

func (f *Feed) pushRing(entry Entry) error {
	return f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedBucket)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(entry.ID))
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := b.Put(key, data); err != nil {
			return err
		}
		return f.evictOverflow(b)
	})
}

func (f *Feed) evictOverflow(b *bolt.Bucket) error {
	if b.Stats().KeyN <= f.ringCap {
		return nil
	}
	c := b.Cursor()
	k, _ := c.First()
	if k == nil {
		return nil
	}
	return b.Delete(k)
}

// Recent returns up to limit most recent entries, oldest first.
func (f *Feed) Recent(limit int) ([]Entry, error) {
	var out []Entry
	err := f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedBucket)
		c := b.Cursor()
		var all []Entry
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			all = append(all, e)
			if len(all) >= limit {
				break
			}
		}
		for i := len(all) - 1; i >= 0; i-- {
			out = append(out, all[i])
		}
		return nil
	})
	return out, err
}

// ServeWS upgrades r into a websocket connection registered for broadcast,
// sending the current recent window immediately on connect.
func (f *Feed) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	f.clientsMu.Lock()
	f.clients[conn] = struct{}{}
	f.clientsMu.Unlock()

	go func() {
		defer f.removeClient(conn)
		if recent, err := f.Recent(50); err == nil {
			f.send(conn, recent)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (f *Feed) removeClient(conn *websocket.Conn) {
	f.clientsMu.Lock()
	delete(f.clients, conn)
	f.clientsMu.Unlock()
	_ = conn.Close()
}

func (f *Feed) broadcast(entry Entry) {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()
	for conn := range f.clients {
		f.send(conn, entry)
	}
}

func (f *Feed) send(conn *websocket.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
