package client

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	transports "github.com/eigenein/myiot/internal/cmd/client/transports"
)

// DefaultBaseURL is used when MYIOT_HTTP is not set.
const DefaultBaseURL = "http://127.0.0.1:8080"

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// BaseURLFromEnv returns MYIOT_HTTP or DefaultBaseURL.
func BaseURLFromEnv() string {
	if v := os.Getenv("MYIOT_HTTP"); v != "" {
		return v
	}
	return DefaultBaseURL
}

func getTransport(baseURL BaseURLFunc) transports.Transport {
	return transports.NewHTTPTransport(baseURL(), nil, nil)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAt accepts RFC3339 or Unix milliseconds. Empty yields the zero time.
func parseAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
