// Package state keeps per-chat conversation sessions in memory.
// Sessions expire after a configurable idle period.
package state
