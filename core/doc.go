// Package core contains the inbox domain contracts, entities, configuration
// and error envelopes. Storage, transport and webhook adapters depend on this
// package; core must not depend on any of them.
package core
