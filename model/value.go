package model

import (
	"encoding/json"
	"strings"
)

// CoerceValue turns a free-form CSV value into its payload form. Values
// that decode as JSON are sent structured, anything else is sent as the
// literal string. Numbers stay json.Number so integral values survive
// re-encoding unchanged.
//
// This is the single coercion point for the value column; both the
// validation display path and the apply payload path go through it.
func CoerceValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	// Trailing content after a valid JSON prefix ("123abc") is not JSON.
	if dec.More() {
		return raw
	}
	return v
}
