// Package store persists events into two projections kept in one Pebble
// database: the actual value of each channel and the time-ordered log of its
// values.
//
// Keyspace (byte-wise, lexicographically sortable):
//
//	actual/{channel}          -> JSON event
//	log/{channel}\x00{tskey}  -> JSON {timestamp, value}
//	meta/version              -> schema version (uint32 big-endian)
//
// tskey is the fixed-width UTC timestamp YYYYMMDDhhmmssffffff, so byte order
// equals time order within a channel. Two events of one channel with the same
// microsecond overwrite each other in the log.
package store
