package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"glowspa/api/internal/ids"
)

// Event is one line of the security audit trail. Denial reasons recorded
// here stay internal; user-facing responses carry only generic messages.
type Event struct {
	Time      time.Time `json:"time"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	IPAddress string    `json:"ip,omitempty"`
}

const (
	ActionLogin            = "auth.login"
	ActionLoginFailed      = "auth.login_failed"
	ActionLockout          = "auth.lockout"
	ActionLockoutCleared   = "auth.lockout_cleared"
	ActionRefresh          = "auth.refresh"
	ActionRefreshReuse     = "auth.refresh_reuse"
	ActionLogout           = "auth.logout"
	ActionRevokeAll        = "auth.revoke_all"
	ActionPasswordChange   = "auth.password_change"
	ActionPermissionDenied = "authz.denied"
)

// Sink receives flushed batches of audit lines. The object-storage archiver
// implements it; tests substitute an in-memory one.
type Sink interface {
	Archive(ctx context.Context, name string, data []byte) error
}

// Recorder buffers events in memory and periodically hands JSON-lines
// batches to its sink. Recording never blocks a request: when the buffer is
// full the event is dropped and counted.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	dropped int
	cap     int
	sink    Sink
	log     zerolog.Logger
}

func NewRecorder(sink Sink, bufferSize int, log zerolog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Recorder{
		cap:  bufferSize,
		sink: sink,
		log:  log,
	}
}

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) >= r.cap {
		r.dropped++
		return
	}
	r.events = append(r.events, event)
}

// Flush archives the buffered events as one JSON-lines object named by day
// and a sortable id. An empty buffer is a no-op.
func (r *Recorder) Flush(ctx context.Context) error {
	if r == nil || r.sink == nil {
		return nil
	}

	r.mu.Lock()
	batch := r.events
	dropped := r.dropped
	r.events = nil
	r.dropped = 0
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if dropped > 0 {
		r.log.Warn().Int("dropped", dropped).Msg("audit events dropped")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}

	name := "audit/" + batch[0].Time.Format("2006-01-02") + "/" + ids.New() + ".log"
	if err := r.sink.Archive(ctx, name, buf.Bytes()); err != nil {
		// Put the batch back so the next flush retries it.
		r.mu.Lock()
		r.events = append(batch, r.events...)
		if len(r.events) > r.cap {
			r.dropped += len(r.events) - r.cap
			r.events = r.events[:r.cap]
		}
		r.mu.Unlock()
		return err
	}

	r.log.Debug().Int("events", len(batch)).Str("object", name).Msg("audit batch archived")
	return nil
}
