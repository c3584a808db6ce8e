// Package service defines the producer contract supervised by the runner and
// helpers shared by producer implementations.
//
// A Service yields an infinite sequence of events. The sequence fails by
// yielding a non-nil error and must stop promptly when its context is done.
// Producers live in subpackages (clock, file, nest, mqtt, sysstat, buienradar).
package service
