// Package client provides the `myiot` command-line client.
//
// The CLI talks to the hub's HTTP API to inspect actual values and logs
// from a terminal.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads MYIOT_HTTP and
// defaults to http://127.0.0.1:8080.
//
// Usage
//
//	myiot health
//	myiot channels
//	myiot actual
//	myiot actual nest:thermostat:abc:ambient_temperature_c
//	myiot log --channel clock:tick --period 6h --limit 100
//	myiot log --channel clock:tick --since 2025-09-20T12:00:00Z
//
//	# Follow the live feed, starting with the current values
//	myiot watch --snapshot --channel 'nest:.*'
package client
