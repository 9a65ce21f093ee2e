package panopticon

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predtext/internal/catalog"
	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
)

func newTestPanopticon() *Panopticon {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Options{Screens: catalog.Default().Screens, Logger: logger})
}

func TestOverviewSortedAndCurrent(t *testing.T) {
	p := newTestPanopticon()

	require.NoError(t, p.Ingest("zed", event.Login("zed", 0).WithStamp(10, "p", 0)))
	require.NoError(t, p.Ingest("amy", event.Login("amy", 1).WithStamp(20, "p", 0)))
	// consent, intro-survey, instructions, practice
	require.NoError(t, p.Ingest("amy", event.SetScreen(3).WithStamp(30, "p", 1)))
	require.NoError(t, p.Ingest("amy", event.TapKey("h", 0, 0).WithStamp(40, "p", 2)))

	rows := p.Overview()
	require.Len(t, rows, 2)
	assert.Equal(t, "amy", rows[0].Participant)
	assert.Equal(t, "practice", rows[0].ScreenName)
	assert.Equal(t, "practice", rows[0].CurExperiment)
	assert.Equal(t, "h", rows[0].CurText)
	assert.Equal(t, int64(40), rows[0].LastEventTimestamp)
	assert.Equal(t, 3, rows[0].Events)

	assert.Equal(t, "zed", rows[1].Participant)
	assert.Equal(t, "consent", rows[1].ScreenName)
	assert.Empty(t, rows[1].CurText)
}

func TestFailedReplicaStops(t *testing.T) {
	p := newTestPanopticon()
	require.NoError(t, p.Ingest("p1", event.Login("p1", 0)))

	err := p.Ingest("p1", event.TapKey("a", 0, 0))
	require.ErrorIs(t, err, master.ErrNoActiveTrial)

	assert.ErrorIs(t, p.Ingest("p1", event.Next()), master.ErrNoActiveTrial)
	rows := p.Overview()
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].Err)
	assert.Equal(t, 0, rows[0].ScreenNum, "events after the failure are not applied")
}

func TestSnapshotAndForget(t *testing.T) {
	p := newTestPanopticon()
	require.NoError(t, p.Ingest("p1", event.Login("p1", 0)))

	snap, ok := p.Snapshot("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", snap.ParticipantID)

	p.Forget("p1")
	_, ok = p.Snapshot("p1")
	assert.False(t, ok)
	assert.Empty(t, p.Overview())
}

func TestConcurrentIngest(t *testing.T) {
	p := newTestPanopticon()
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Ingest(id, event.Login(id, -1))
			_ = p.Ingest(id, event.Next())
		}()
	}
	wg.Wait()

	rows := p.Overview()
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, 1, r.ScreenNum)
		assert.Empty(t, r.Err)
	}
}
