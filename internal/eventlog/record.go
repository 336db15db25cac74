package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"mlcore/internal/domain"
)

// Recorder subscribes to ModManager's change bus and appends a durable row
// per settled event. Only Finished progress (and Remove/NewVersion, which
// carry no progress at all) is recorded; the intermediate Waiting/Started/
// Downloading states exist for a live UI, not for the activity log.
type Recorder struct {
	db  *DB
	log *slog.Logger
}

// NewRecorder builds a Recorder writing into db.
func NewRecorder(db *DB, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{db: db, log: log}
}

// Run drains changes until it's closed or ctx is cancelled, recording each
// settled event. A single row's write failure is logged and skipped rather
// than stopping the whole recorder.
func (r *Recorder) Run(ctx context.Context, changes <-chan domain.Change) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if err := r.record(c); err != nil {
				r.log.Error("failed to record activity", "error", err)
			}
		}
	}
}

type row struct {
	kind   string
	modID  string
	detail string
}

func rowFor(c domain.Change) (row, bool) {
	switch c.Kind {
	case domain.ChangeAdd:
		if c.Progress.Kind != domain.ModFinished {
			return row{}, false
		}
		return row{kind: "install", modID: c.Progress.Mod.ID, detail: manifestName(c.Progress.Mod)}, true

	case domain.ChangeUpdate:
		if c.Progress.Kind != domain.ModFinished {
			return row{}, false
		}
		return row{kind: "update", modID: c.Progress.Mod.ID, detail: manifestName(c.Progress.Mod)}, true

	case domain.ChangeRemove:
		return row{kind: "remove", modID: c.ID}, true

	case domain.ChangeNewVersion:
		return row{kind: "new_version", modID: c.ID}, true

	default:
		return row{}, false
	}
}

func manifestName(m domain.Mod) string {
	if m.Manifest == nil {
		return ""
	}
	return m.Manifest.Name
}

func (r *Recorder) record(c domain.Change) error {
	rw, ok := rowFor(c)
	if !ok {
		return nil
	}
	_, err := r.db.Exec(
		"INSERT INTO activity_log (id, kind, mod_id, detail) VALUES (?, ?, ?, ?)",
		uuid.New().String(), rw.kind, rw.modID, rw.detail,
	)
	if err != nil {
		return fmt.Errorf("inserting activity row: %w", err)
	}
	return nil
}

// Activity is one recorded row, returned oldest-to-newest-reversed (most
// recent first) by RecentActivity.
type Activity struct {
	ID         string
	Kind       string
	ModID      string
	Detail     string
	OccurredAt string
}

// RecentActivity returns the n most recent activity rows, most recent
// first, letting a host UI show "what happened last session" on restart.
func (r *Recorder) RecentActivity(n int) ([]Activity, error) {
	rows, err := r.db.Query(
		"SELECT id, kind, mod_id, detail, occurred_at FROM activity_log ORDER BY occurred_at DESC, rowid DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Kind, &a.ModID, &a.Detail, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity log: %w", err)
	}
	return out, nil
}
