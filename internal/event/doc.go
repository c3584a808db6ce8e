// Package event defines the observation record that flows from producers
// through the store into the router.
//
// An Event is keyed by its channel, a stable identifier of one observed
// attribute such as "nest:thermostat:123:ambient_temperature_c". The store
// keeps the latest Event per channel (the actual projection) and an
// append-only log of timestamp/value pairs per channel.
package event
