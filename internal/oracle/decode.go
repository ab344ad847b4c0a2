package oracle

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Outcome tags how a lenient decode succeeded, so callers and tests can
// tell a confident parse from a default.
type Outcome int

const (
	// DecodedStrict means the response was valid JSON as-is.
	DecodedStrict Outcome = iota
	// DecodedExtracted means a JSON object had to be cut out of
	// surrounding prose.
	DecodedExtracted
	// DecodeFailed means no JSON object could be recovered; the target
	// is left untouched and the caller must apply its fallback.
	DecodeFailed
)

var (
	reFence      = regexp.MustCompile("```[a-zA-Z]*\n?")
	reJSONObject = regexp.MustCompile(`\{[\s\S]*\}`)
)

// StripFences removes markdown code-fence markers the oracle sometimes
// wraps around its output despite instructions.
func StripFences(text string) string {
	text = reFence.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// DecodeLenient decodes an oracle response into v. It first tries the
// fence-stripped text as strict JSON, then the first {...} span found in
// it. On DecodeFailed v is untouched.
func DecodeLenient(text string, v any) Outcome {
	text = StripFences(text)
	if json.Unmarshal([]byte(text), v) == nil {
		return DecodedStrict
	}
	if span := reJSONObject.FindString(text); span != "" {
		if json.Unmarshal([]byte(span), v) == nil {
			return DecodedExtracted
		}
	}
	return DecodeFailed
}
