// Package config provides loading and environment overlay for myiot
// configuration. It exposes a Default() baseline, file loading (JSON or
// YAML by extension) and a MYIOT_* environment overlay.
//
// Example:
//
//	cfg, err := config.Load("/etc/myiot.yaml")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//
// A minimal YAML file:
//
//	dataDir: /var/lib/myiot
//	services:
//	  - type: clock
//	    name: minute
//	    interval: 1m
//	rules:
//	  - name: log-everything
//	    action: log
package config
