// Package ratelimit paces outbound requests.
//
// Each image source gets its own limiter from a Group so that a slow or
// strict provider does not stall the others. Wait honors context
// cancellation.
package ratelimit
