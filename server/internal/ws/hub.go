package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/facultyload/facultyload/server/internal/api"
	"github.com/facultyload/facultyload/server/internal/store"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10 // must stay below pongWait
	sendBufSize  = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API key middleware guards the route; origins are not checked.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventSnapshot is the only event type sent to dashboards.
const EventSnapshot = "snapshot"

// Message is the JSON envelope of every push.
type Message struct {
	Event string             `json:"event"`
	Data  api.StreamResponse `json:"data"`
}

// Hub pushes workload snapshots to connected dashboards. A dashboard may
// subscribe to one department with ?department=; it then receives only that
// department's records and summaries. Each subscriber gets the current
// snapshot on connect and afterwards only snapshots it has not seen.
type Hub struct {
	store    *store.Store
	interval time.Duration
	publish  chan struct{}

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// New creates a Hub over st that checks for a new snapshot every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		publish:  make(chan struct{}, 1),
		subs:     make(map[*subscriber]struct{}),
	}
}

// Publish asks Run to push now, typically after a refresh stored a snapshot.
// It never blocks; pending requests coalesce.
func (h *Hub) Publish() {
	select {
	case h.publish <- struct{}{}:
	default:
	}
}

// Run pushes new snapshots every interval and on Publish until ctx is
// cancelled, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.push()
		case <-h.publish:
			h.push()
			t.Reset(h.interval)
		}
	}
}

// ServeHTTP upgrades the request and serves one dashboard until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader wrote the error response
	}

	s := newSubscriber(conn, strings.TrimSpace(r.URL.Query().Get("department")))
	snap := h.latest()
	if data, err := encode(snap, s.department); err == nil {
		s.offer(data)
		s.seen = snapshotID(snap)
	}
	h.add(s)
	defer h.remove(s)

	go s.writeLoop()
	s.readLoop()
}

// Count returns the number of connected dashboards.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
}

func (h *Hub) latest() *store.Snapshot {
	if e, ok := h.store.Latest(); ok {
		return e.Snapshot
	}
	return nil
}

// push sends the latest snapshot to every subscriber that has not seen it,
// encoding it once per subscribed department. Offers happen under the read
// lock so remove cannot close a channel mid-send. Subscribers whose buffer
// is full are dropped.
func (h *Hub) push() {
	snap := h.latest()
	id := snapshotID(snap)
	encoded := make(map[string][]byte)
	var slow []*subscriber

	h.mu.RLock()
	for s := range h.subs {
		if s.seen == id {
			continue
		}
		data, ok := encoded[s.department]
		if !ok {
			var err error
			if data, err = encode(snap, s.department); err != nil {
				continue
			}
			encoded[s.department] = data
		}
		if !s.offer(data) {
			slow = append(slow, s)
			continue
		}
		s.seen = id
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.remove(s)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		close(s.send)
		delete(h.subs, s)
	}
}

func encode(snap *store.Snapshot, department string) ([]byte, error) {
	return json.Marshal(Message{Event: EventSnapshot, Data: api.StreamFor(snap, department)})
}

func snapshotID(snap *store.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.ID
}
