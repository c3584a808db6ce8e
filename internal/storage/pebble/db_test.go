package pebblestore

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testMetrics struct {
	read         int
	batchCommits int
	batchBytes   int
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) { m.read += bytes }
func (m *testMetrics) ObserveBatchCommit(d time.Duration, bytes int) {
	m.batchCommits++
	m.batchBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       t.TempDir(),
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGet(t *testing.T) {
	db, metrics := newTestDB(t)

	if err := db.Set([]byte("actual/a"), []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("actual/a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "1" {
		t.Fatalf("got %q want %q", got, "1")
	}
	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}
	if _, err := db.Get([]byte("actual/missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchCommitMetrics(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("a"), []byte("1"), nil)
	_ = b.Set([]byte("b"), []byte("2"), nil)
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if metrics.batchCommits != 1 || metrics.batchBytes == 0 {
		t.Fatalf("unexpected batch metrics: %+v", metrics)
	}
}

func TestCommitBatchCancelled(t *testing.T) {
	db, _ := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("a"), []byte("1"), nil)
	if err := db.CommitBatch(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	db, _ := newTestDB(t)
	for _, k := range []string{"log/a\x001", "log/a\x002", "log/ab\x001", "log/b\x001"} {
		if err := db.Set([]byte(k), []byte("v")); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	var keys []string
	err := db.Scan([]byte("log/a\x00"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "log/a\x001" || keys[1] != "log/a\x002" {
		t.Fatalf("unexpected keys %q", keys)
	}

	n := 0
	_ = db.Scan([]byte("log/"), func(_, _ []byte) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Fatalf("scan should stop when fn returns false, visited %d", n)
	}
}

func TestPrefixEnd(t *testing.T) {
	cases := map[string]string{
		"a":         "b",
		"a\xff":     "b",
		"log/x\x00": "log/x\x01",
	}
	for in, want := range cases {
		if got := string(PrefixEnd([]byte(in))); got != want {
			t.Fatalf("PrefixEnd(%q)=%q want %q", in, got, want)
		}
	}
	if PrefixEnd([]byte{0xff, 0xff}) != nil {
		t.Fatalf("expected nil for all-0xff prefix")
	}
}

func TestParseFsyncMode(t *testing.T) {
	for in, want := range map[string]FsyncMode{"always": FsyncModeAlways, "": FsyncModeInterval, "Never": FsyncModeNever} {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
