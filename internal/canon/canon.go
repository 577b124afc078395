// Package canon produces the canonical signing bytes shared by every
// protocol message and settlement hash: sorted keys, compact
// separators, UTF-8. encoding/json already marshals map[string]any
// with alphabetically sorted keys and no extra whitespace, so a
// canonical payload is simply json.Marshal of a map built from the
// named fields for that message type; this package only owns the final
// encode step so every caller gets byte-identical output.
package canon

import (
	"bytes"
	"encoding/json"
)

// JSON marshals v (expected to be a map[string]any or a value composed
// entirely of maps/slices/scalars) into canonical bytes: sorted object
// keys, no insignificant whitespace.
func JSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// Signing bytes must stay whitespace-free even if the encoder
	// changes.
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustJSON panics on marshal error; only safe for payloads built from
// known-good in-memory fields within this codebase.
func MustJSON(v any) []byte {
	b, err := JSON(v)
	if err != nil {
		panic(err)
	}
	return b
}
