// Package automation turns configuration into running parts: producers from
// the services section and router handlers from the rules section, together
// with the sink clients the handlers share.
package automation
