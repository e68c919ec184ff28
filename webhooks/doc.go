// Package webhooks authenticates and ingests signed message webhooks.
//
// Ingestion is a short state machine that stops at the first failing step:
// signature check -> payload decode and validation -> insert. Created and
// duplicate inserts are both accepted; only storage failures surface as
// server errors.
package webhooks
