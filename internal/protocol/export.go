package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// WriteRecords writes envelopes as JSON lines, one record per envelope, in
// the order given.
func WriteRecords(w io.Writer, entries []Envelope) error {
	enc := json.NewEncoder(w)
	for i, env := range entries {
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// ReadRecords decodes JSON lines produced by WriteRecords.
func ReadRecords(r io.Reader) ([]Envelope, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	var out []Envelope
	for {
		var env Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, env)
	}
}

// Marshal encodes a single envelope.
func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Unmarshal decodes a single envelope.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}
