package mcp

import (
	"fmt"

	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
)

// Encode serializes m as JSON.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("mcp: cannot encode nil message")
	}
	return jsonpool.Marshal(m)
}

// Decode parses a JSON envelope and validates it.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := jsonpool.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("mcp: decode envelope: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
