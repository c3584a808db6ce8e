// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// batches, prefix scans and a minimal metrics hook.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data/store",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("actual/clock:a"), []byte(`{"value":1}`), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	_ = db.Scan([]byte("actual/"), func(k, v []byte) bool { return true })
package pebblestore
