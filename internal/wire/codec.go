package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// binaryMagic tags the binary-prefixed wire form so Decode can tell it
// apart from a bare JSON document (which never starts with this byte).
const binaryMagic = 0xA5

// EncodeJSON renders the envelope as its canonical JSON wire form.
func EncodeJSON(e *Envelope) ([]byte, error) {
	full := struct {
		Type      Kind           `json:"type"`
		Version   int            `json:"version"`
		Payload   map[string]any `json:"payload"`
		Sender    string         `json:"sender"`
		Signature string         `json:"signature"`
		Relay     RelayMeta      `json:"relay"`
	}{e.Type, e.Version, e.Payload, e.Sender, e.Signature, e.Relay}
	return json.Marshal(full)
}

// EncodeBinary renders a 1-to-1 binary-prefixed form: a single magic
// byte followed by the JSON body, so the binary form round-trips
// exactly with the JSON form without a bespoke binary schema for a
// payload shape that changes per message kind.
func EncodeBinary(e *Envelope) ([]byte, error) {
	body, err := EncodeJSON(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, binaryMagic)
	out = append(out, body...)
	return out, nil
}

// Decode normalizes either wire form into the common in-process
// Envelope representation.
func Decode(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("wire: empty message")
	}
	body := data
	if data[0] == binaryMagic {
		body = data[1:]
	}
	var full struct {
		Type      Kind           `json:"type"`
		Version   int            `json:"version"`
		Payload   map[string]any `json:"payload"`
		Sender    string         `json:"sender"`
		Signature string         `json:"signature"`
		Relay     RelayMeta      `json:"relay"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&full); err != nil {
		return nil, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return &Envelope{
		Type:      full.Type,
		Version:   full.Version,
		Payload:   full.Payload,
		Sender:    full.Sender,
		Signature: full.Signature,
		Relay:     full.Relay,
	}, nil
}
