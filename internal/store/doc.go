// Package store persists the conversation ledger for ragchat.
//
// # Model
//
// The ledger is an append-only sequence of turns partitioned by scope: the
// (user_id, conversation_id) pair. Each turn carries a 1-based seq index that
// is strictly increasing within its scope with no gaps or reuse. Turns are
// immutable once written.
//
// There is no conversation table. A conversation exists implicitly as the set
// of messages sharing a scope.
//
// # Index assignment
//
// Append computes seq as count-of-scope + 1 inside the INSERT statement
// itself, so assignment and persistence are one atomic step under SQLite's
// writer lock. A UNIQUE constraint on (user_id, conversation_id, seq)
// backstops the invariant: concurrent appends to one scope can never persist
// the same index twice.
//
// # Retrieval
//
//   - LastN: the n most recent turns, re-ordered oldest-first for use as a
//     model context window
//   - All: full scope history, oldest-first, for client-facing display
//
// An empty scope returns an empty slice, not an error.
package store
