// Package httpserver provides a small read-only JSON gateway over the event
// store plus a live Server-Sent Events feed of dispatched events.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	r.Register("feed", s.Feed().Handler())
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
