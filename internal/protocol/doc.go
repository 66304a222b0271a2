// Package protocol decodes the inference service's reply format.
//
// A reply is a plain text stream that may embed exactly one metadata block:
//
//	METADATA_START:{'sources': ['doc.pdf (p.3)'], 'context': '...'}:METADATA_END
//
// The payload uses the upstream's native literal spellings (single quotes,
// True/False/None), so decoding is a two-stage pipeline: textual
// normalization driven by an ordered replacement table, then a strict JSON
// parse. Decoding is best-effort and never fails - malformed metadata
// degrades to an empty source list while the visible answer is preserved,
// and the sentinel region is always stripped from what the client sees.
package protocol
