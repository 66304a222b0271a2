// ABOUTME: Best-effort decoder for the inference service's sentinel-delimited reply format
// ABOUTME: Separates embedded source metadata from the human-readable answer text

package protocol

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Sentinel markers delimiting the embedded metadata block.
const (
	MetadataStart = "METADATA_START:"
	MetadataEnd   = ":METADATA_END"
)

// literalReplacements rewrites the upstream's native literal spellings to
// strict JSON. The payload is produced by stringifying a Python dict, so it
// arrives with Python booleans and None. Ordered so new rules can be appended
// without touching parse logic.
var literalReplacements = []struct {
	old string
	new string
}{
	{"True", "true"},
	{"False", "false"},
	{"None", "null"},
}

// Reply is the decoded result: the visible answer with the sentinel block
// removed, plus whatever metadata survived parsing. It is derived fresh from
// each raw payload and never persisted in parsed form.
type Reply struct {
	Answer  string
	Sources []string
	Context string
}

// metadataPayload is the parsed shape of the embedded block.
type metadataPayload struct {
	Sources []string `json:"sources"`
	Context string   `json:"context"`
}

// Decoder extracts metadata blocks from raw inference replies.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a Decoder
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger.With("component", "protocol")}
}

// Decode separates the embedded metadata block from the visible answer.
// It never fails: missing or malformed metadata degrades to an empty source
// list, and the visible text is always preserved. The sentinel region is
// stripped from the answer even when its payload is unusable, so the client
// never sees raw metadata.
func (d *Decoder) Decode(raw string) Reply {
	start := strings.Index(raw, MetadataStart)
	if start < 0 {
		// Common path: plain answer with no embedded block
		return Reply{Answer: strings.TrimSpace(raw), Sources: []string{}}
	}

	end := strings.Index(raw[start+len(MetadataStart):], MetadataEnd)
	if end < 0 {
		// Start sentinel without a matching end: leave the text untouched
		// rather than guessing where the block was meant to stop.
		return Reply{Answer: strings.TrimSpace(raw), Sources: []string{}}
	}
	end += start + len(MetadataStart)

	payload := raw[start+len(MetadataStart) : end]
	answer := strings.TrimSpace(raw[:start] + raw[end+len(MetadataEnd):])

	reply := Reply{Answer: answer, Sources: []string{}}

	var meta metadataPayload
	if err := json.Unmarshal([]byte(normalize(payload)), &meta); err != nil {
		d.logger.Warn("failed to parse metadata payload", "error", err)
		return reply
	}

	if meta.Sources != nil {
		reply.Sources = meta.Sources
	}
	reply.Context = meta.Context
	return reply
}

// normalize rewrites the loosely-JSON payload into strict JSON: literal
// spellings first, then single quotes to double quotes.
func normalize(payload string) string {
	for _, r := range literalReplacements {
		payload = strings.ReplaceAll(payload, r.old, r.new)
	}
	return strings.ReplaceAll(payload, "'", `"`)
}
