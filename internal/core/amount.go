// Package core provides the domain types of a voice note and its record.
//
// This file contains helpers for reading and checking record amounts as
// they arrive from model output.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// ValidAmount reports whether a is either absent or a finite number.
func ValidAmount(a *float64) bool {
	return a == nil || !(math.IsNaN(*a) || math.IsInf(*a, 0))
}

// AmountFromJSON reads an amount from a raw JSON value.
//
// Only a JSON number that fits a finite float64 is accepted. Strings,
// booleans, objects, arrays and null all yield nil. The second result is
// false when a value was present but rejected, so callers can tell a
// missing amount from a malformed one.
//
// Examples:
//
//	AmountFromJSON(`5000`)   -> 5000, true
//	AmountFromJSON(`"free"`) -> nil, false
//	AmountFromJSON(`null`)   -> nil, true
func AmountFromJSON(raw json.RawMessage) (*float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	// json.Number also decodes quoted numerals.
	if raw[0] == '"' {
		return nil, false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return nil, false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// FormatAmount renders an amount for text stores; nil renders empty.
func FormatAmount(a *float64) string {
	if a == nil {
		return ""
	}
	return strconv.FormatFloat(*a, 'f', -1, 64)
}

// Float64 is a convenience for building optional amounts.
func Float64(v float64) *float64 {
	return &v
}
