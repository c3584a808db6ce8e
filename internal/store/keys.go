package store

import (
	"bytes"
	"strings"
	"time"
)

var (
	actualPrefix = []byte("actual/")
	logPrefix    = []byte("log/")
	versionKey   = []byte("meta/version")
)

const (
	logSep          = byte(0)
	timestampLayout = "20060102150405.000000"
	timestampKeyLen = 20
)

// TimestampKey renders t as a fixed-width UTC key with microsecond precision.
func TimestampKey(t time.Time) string {
	return strings.Replace(t.UTC().Format(timestampLayout), ".", "", 1)
}

// ParseTimestampKey is the inverse of TimestampKey.
func ParseTimestampKey(s string) (time.Time, error) {
	if len(s) == timestampKeyLen {
		s = s[:14] + "." + s[14:]
	}
	return time.ParseInLocation(timestampLayout, s, time.UTC)
}

// KeyActual builds the actual projection key of a channel.
func KeyActual(channel string) []byte {
	k := make([]byte, 0, len(actualPrefix)+len(channel))
	k = append(k, actualPrefix...)
	return append(k, channel...)
}

// KeyLogPrefix builds the prefix shared by every log entry of a channel.
func KeyLogPrefix(channel string) []byte {
	k := make([]byte, 0, len(logPrefix)+len(channel)+1+timestampKeyLen)
	k = append(k, logPrefix...)
	k = append(k, channel...)
	return append(k, logSep)
}

// KeyLogEntry builds the log key of a channel value at ts.
func KeyLogEntry(channel string, ts time.Time) []byte {
	return append(KeyLogPrefix(channel), TimestampKey(ts)...)
}

// splitLogKey returns the channel and timestamp key of a log entry key.
func splitLogKey(key []byte) (channel, tskey string, ok bool) {
	if !bytes.HasPrefix(key, logPrefix) {
		return "", "", false
	}
	rest := key[len(logPrefix):]
	i := bytes.LastIndexByte(rest, logSep)
	if i < 0 {
		return "", "", false
	}
	return string(rest[:i]), string(rest[i+1:]), true
}

func channelFromActualKey(key []byte) string {
	return string(key[len(actualPrefix):])
}
