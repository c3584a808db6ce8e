// Package runner supervises services: it keeps every event sequence alive
// with exponential backoff, persists each event and hands it to the router.
//
// Dispatch is detached from ingestion through an ordered queue per service,
// so handlers observe a service's events in production order while a slow
// handler never stalls the producer.
package runner
