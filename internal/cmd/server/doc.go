// Package serverrun exposes the Run entrypoint used by the CLI to start the
// myiot hub: storage, producers, rules, the HTTP gateway and shutdown.
//
// Example:
//
//	cfg, _ := config.Load("myiot.yaml")
//	config.FromEnv(&cfg)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg, Version: "1.0.0"})
package serverrun
