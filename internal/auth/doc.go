// Package auth provides identity resolution for ragchat.
//
// # Tokens
//
// Callers authenticate with HS256 JWTs signed with the configured jwt_secret.
// A token carries the user id in "sub" and the principal email in "email",
// with a 7-day expiry fixed at issuance.
//
// # Dual-mode resolution
//
// The Resolver reads the token from the Authorization header first
// ("Bearer <token>"), falling back to the auth_token cookie. Both carry the
// same signed format, so browser sessions and API clients authenticate
// identically.
//
// # Failure policy
//
// Resolution never aborts a request. Expired, tampered, or malformed tokens
// are logged as warnings and treated exactly like a missing token; each
// endpoint decides whether an unauthenticated caller is allowed.
package auth
