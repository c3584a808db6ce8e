// Package sse decodes Server-Sent Events streams into records.
//
// A record is terminated by a blank line. Within a record:
//
//	event: put        sets the record name
//	data: {"a":1}     appends a data line (joined with "\n")
//	id: 42            sets the record id
//	: keep-alive      is a comment
//
// A record still buffered when the stream ends is discarded.
package sse
