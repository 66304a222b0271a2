// Package inference is the HTTP client for the external answer engine.
//
// The engine is consumed as an opaque collaborator: ragchat posts a question
// plus a bounded context window and receives raw text in the sentinel format
// decoded by package protocol. Requests carry a shared secret header
// (x-internal-secret) for service-to-service trust and use a long timeout
// since generation is slow. One attempt per request; failures surface as
// ErrUnavailable.
package inference
