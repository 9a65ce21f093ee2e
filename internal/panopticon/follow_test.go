package panopticon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/store"
)

func TestFollowerPollsIncrementally(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	log := st.EventLog()
	_, err = log.Append(ctx, "amy", event.Login("amy", 0).WithStamp(10, "p", 0))
	require.NoError(t, err)

	f := newTestPanopticon().Follow(log)
	n, err := f.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "an idle poll reads nothing")

	_, err = log.Append(ctx, "amy", event.Next().WithStamp(20, "p", 1))
	require.NoError(t, err)
	_, err = log.Append(ctx, "bob", event.Login("bob", 1).WithStamp(25, "p", 0))
	require.NoError(t, err)
	n, err = f.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := f.Overview()
	require.Len(t, rows, 2)
	assert.Equal(t, "amy", rows[0].Participant)
	assert.Equal(t, 1, rows[0].ScreenNum)
	assert.Equal(t, 2, rows[0].Events)
	assert.Equal(t, int64(20), rows[0].LastEventTimestamp)
	assert.Equal(t, "bob", rows[1].Participant)
}

func TestFollowerKeepsPollingPastFailures(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	defer st.Close()

	log := st.EventLog()
	for _, ev := range []event.Event{event.Login("p1", 0), event.TapKey("a", 0, 0), event.Next()} {
		_, err := log.Append(ctx, "p1", ev)
		require.NoError(t, err)
	}

	f := newTestPanopticon().Follow(log)
	n, err := f.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := f.Overview()
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].Err)
}
