// Package chat orchestrates one question/answer exchange.
//
// # Flow
//
// Each POST /chat runs the same sequence:
//
//	AuthCheck -> RecordUserTurn -> BuildContext -> InvokeInference ->
//	DecodeReply -> RecordAiTurn -> Respond
//
// The ledger write for the user turn happens before the inference call, so a
// durable record of the question exists even when the engine fails. Failures
// after that point never roll the turn back: the system prefers an
// at-least-once durable log of user input over transactional cleanliness.
//
// # Outcomes
//
// Failures are classified as sentinel errors (ErrUnauthenticated,
// ErrEmptyQuestion, ErrStorage, ErrUpstream) so the HTTP layer can map them
// to statuses and tests can assert on the distinction between fatal and
// log-and-continue paths. The AI-turn write is the one log-and-continue case:
// by then the answer exists and must still reach the client.
//
// # History
//
// GET /chat returns the default conversation's turns wrapped in a
// single-element envelope, leaving room for multi-conversation listing later.
package chat
