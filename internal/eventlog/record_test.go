package eventlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcore/internal/domain"
	"mlcore/internal/eventlog"
)

func TestOpen_RunsMigrations(t *testing.T) {
	db, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	var count int
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM activity_log").Scan(&count))
}

func TestRecorder_RecordsFinishedInstallAndUpdate(t *testing.T) {
	db, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	rec := eventlog.NewRecorder(db, nil)
	changes := make(chan domain.Change, 8)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, changes) }()

	changes <- domain.Change{Kind: domain.ChangeAdd, Progress: domain.ModProgress{Kind: domain.ModStarted, ID: "mod-a"}}
	changes <- domain.Change{Kind: domain.ChangeAdd, Progress: domain.ModProgress{
		Kind: domain.ModFinished,
		Mod:  domain.Mod{ID: "mod-a", Manifest: &domain.Manifest{Name: "Mod A"}},
	}}
	changes <- domain.Change{Kind: domain.ChangeRemove, ID: "mod-b"}

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	activity, err := rec.RecentActivity(10)
	require.NoError(t, err)
	require.Len(t, activity, 2, "Started progress should not be recorded, only Finished and Remove")

	assert.Equal(t, "remove", activity[0].Kind)
	assert.Equal(t, "mod-b", activity[0].ModID)
	assert.Equal(t, "install", activity[1].Kind)
	assert.Equal(t, "mod-a", activity[1].ModID)
	assert.Equal(t, "Mod A", activity[1].Detail)
}

func TestRecorder_StopsOnChannelClose(t *testing.T) {
	db, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	rec := eventlog.NewRecorder(db, nil)
	changes := make(chan domain.Change)
	done := make(chan error, 1)
	go func() { done <- rec.Run(context.Background(), changes) }()

	close(changes)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop after channel close")
	}
}
