package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenein/myiot/internal/event"
	pebblestore "github.com/eigenein/myiot/internal/storage/pebble"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := openDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(context.Background(), db, Options{Now: func() time.Time { return epoch }})
	require.NoError(t, err)
	return s
}

func TestSaveEventActualRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := event.New("clock:a", 1.5, event.Celsius, event.WithTitle("A"), event.WithTimestamp(epoch))

	prev, err := s.SaveEvent(ctx, e)
	require.NoError(t, err)
	assert.Nil(t, prev)

	got, ok := s.GetActual()["clock:a"]
	require.True(t, ok)
	assert.Equal(t, e.Channel, got.Channel)
	assert.Equal(t, e.Value, got.Value)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, e.Unit, got.Unit)
	assert.Equal(t, e.Title, got.Title)
	assert.Equal(t, e.IsLogged(), got.IsLogged())

	next := event.New("clock:a", 2.0, event.Celsius, event.WithTimestamp(epoch.Add(time.Second)))
	prev, err = s.SaveEvent(ctx, next)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 1.5, prev.Value)
	assert.Equal(t, []string{"clock:a"}, s.Channels())
}

func TestSaveEventRejectsEmptyChannel(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveEvent(context.Background(), event.Event{Value: 1})
	assert.ErrorIs(t, err, event.ErrNoChannel)
	assert.Empty(t, s.GetActual())
}

func TestStructLiteralEventIsLogged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveEvent(ctx, event.Event{Channel: "c", Value: "1.0", Timestamp: epoch.Add(-time.Minute)})
	require.NoError(t, err)

	entries, err := s.GetLog(ctx, "c", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.0", entries[0].Value)
	assert.True(t, s.GetActual()["c"].IsLogged())
}

func TestTimestampTruncatedToMicroseconds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := epoch.Add(-time.Minute + 1234567*time.Nanosecond)
	_, err := s.SaveEvent(ctx, event.New("c", 1, event.Celsius, event.WithTimestamp(ts)))
	require.NoError(t, err)

	want := ts.Truncate(time.Microsecond)
	assert.True(t, want.Equal(s.GetActual()["c"].Timestamp))
	entries, err := s.GetLog(ctx, "c", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, want.Equal(entries[0].Timestamp))
	assert.Equal(t, TimestampKey(want), TimestampKey(entries[0].Timestamp))
}

func TestLogIsOrderedByTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, off := range []int{3, 1, 2} {
		ts := epoch.Add(-time.Duration(off) * time.Minute)
		_, err := s.SaveEvent(ctx, event.New("t", off, event.Celsius, event.WithTimestamp(ts)))
		require.NoError(t, err)
	}
	// a neighbouring channel sharing a name prefix must not leak in
	_, err := s.SaveEvent(ctx, event.New("tt", 0, event.Celsius, event.WithTimestamp(epoch.Add(-time.Minute))))
	require.NoError(t, err)

	entries, err := s.GetLog(ctx, "t", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []any{3.0, 2.0, 1.0}, []any{entries[0].Value, entries[1].Value, entries[2].Value})
	assert.True(t, entries[0].Timestamp.Before(entries[1].Timestamp))
}

func TestGetLogPeriodFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveEvent(ctx, event.New("t", "old", event.Text, event.WithTimestamp(epoch.Add(-2*time.Hour))))
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, event.New("t", "new", event.Text, event.WithTimestamp(epoch.Add(-time.Minute))))
	require.NoError(t, err)

	entries, err := s.GetLog(ctx, "t", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Value)

	entries, err = s.GetLogRange(ctx, "t", time.Time{}, epoch.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "old", entries[0].Value)
}

func TestUnitProjections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveEvent(ctx, event.New("cam:jpeg", "bytes", event.JPEG, event.WithTimestamp(epoch)))
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, event.New("cam:url", "http://x", event.ImageURL, event.WithTimestamp(epoch)))
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, event.New("quiet", 1, event.Celsius, event.WithTimestamp(epoch), event.NotLogged()))
	require.NoError(t, err)

	actual := s.GetActual()
	assert.NotContains(t, actual, "cam:jpeg")
	assert.Contains(t, actual, "cam:url")
	assert.Contains(t, actual, "quiet")

	for _, ch := range []string{"cam:jpeg", "cam:url", "quiet"} {
		entries, err := s.GetLog(ctx, ch, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, entries, ch)
	}
}

func TestSameTimestampOverwritesLogEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.SaveEvent(ctx, event.New("t", 1, event.Celsius, event.WithTimestamp(epoch)))
	_, _ = s.SaveEvent(ctx, event.New("t", 2, event.Celsius, event.WithTimestamp(epoch)))

	entries, err := s.GetLog(ctx, "t", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2.0, entries[0].Value)
}

func TestReopenKeepsProjections(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db := openDB(t, dir)
	s, err := Open(ctx, db, Options{Now: func() time.Time { return epoch }})
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, event.New("t", true, event.Boolean, event.WithTimestamp(epoch)))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = openDB(t, dir)
	defer db.Close()
	s, err = Open(ctx, db, Options{Now: func() time.Time { return epoch }})
	require.NoError(t, err)

	got, err := s.Actual("t")
	require.NoError(t, err)
	assert.Equal(t, true, got.Value)

	entries, err := s.GetLog(ctx, "t", time.Minute)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion(), v)

	_, err = s.Actual("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrationDropsNonStorableActual(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	defer db.Close()

	// a pre-migration database that kept a JPEG frame as actual value
	require.NoError(t, db.Set(KeyActual("cam"), []byte(`{"channel":"cam","value":"x","unit":"JPEG"}`)))
	require.NoError(t, db.Set(KeyActual("t"), []byte(`{"channel":"t","value":1,"unit":"CELSIUS"}`)))

	s, err := Open(context.Background(), db, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, s.Channels())
	assert.True(t, s.GetActual()["t"].IsLogged())
}

func TestTrim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := range 5 {
		ts := epoch.Add(-time.Duration(i) * time.Hour)
		_, err := s.SaveEvent(ctx, event.New("a", i, event.Celsius, event.WithTimestamp(ts)))
		require.NoError(t, err)
		_, err = s.SaveEvent(ctx, event.New("b", i, event.Celsius, event.WithTimestamp(ts)))
		require.NoError(t, err)
	}

	n, err := s.TrimLog(ctx, "a", epoch.Add(-150*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.TrimAll(ctx, epoch.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	a, _ := s.GetLog(ctx, "a", 24*time.Hour)
	b, _ := s.GetLog(ctx, "b", 24*time.Hour)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}
