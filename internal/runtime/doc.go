// Package runtime wires storage, config and the event store into a single
// myiot instance. It exposes Open/Close, a health check and log retention.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data/store", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	actual := rt.Store().GetActual()
package runtime
