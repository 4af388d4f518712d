package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Row is an ordered mapping from column name to a scalar cell value
// (string, number, bool or nil). Keys keep insertion order, which is header
// order for serialized rows. The zero value is an empty row.
type Row struct {
	keys   []string
	values map[string]any
}

// Set stores value under key. An existing key keeps its position.
func (r *Row) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Prepend stores value under key as the first field.
func (r *Row) Prepend(key string, value any) {
	if _, ok := r.values[key]; ok {
		r.values[key] = value
		return
	}
	r.Set(key, value)
	copy(r.keys[1:], r.keys[:len(r.keys)-1])
	r.keys[0] = key
}

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in order.
func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Row) Len() int {
	return len(r.keys)
}

// Map returns a copy of the row as an unordered map.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = r.values[k]
	}
	return out
}

// MarshalJSON encodes the row as a JSON object with keys in row order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeRow parses a JSON object into a Row, preserving key order.
// Values must be scalars; nested objects and arrays are rejected.
// Numbers are kept as json.Number so they round-trip unchanged.
func DecodeRow(data []byte) (Row, error) {
	var row Row

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return row, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return row, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return row, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		key, ok := tok.(string)
		if !ok {
			return row, fmt.Errorf("%w: unexpected token %v", ErrInvalidPayload, tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return row, fmt.Errorf("%w: value of %q: %v", ErrInvalidPayload, key, err)
		}
		switch value.(type) {
		case nil, string, bool, json.Number:
		default:
			return row, fmt.Errorf("%w: value of %q must be a string, number, boolean or null", ErrInvalidPayload, key)
		}
		row.Set(key, value)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return row, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return row, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidPayload)
	}

	return row, nil
}

// Serialize renders a store record as a Row keyed by the sheet's declared
// headers, in header order. Columns missing from the record, or holding nil,
// yield an empty string.
func Serialize(sheet SheetInfo, cells map[string]any) Row {
	var row Row
	for _, h := range sheet.Headers {
		v, ok := cells[h]
		if !ok || v == nil {
			v = ""
		}
		row.Set(h, v)
	}
	return row
}

// SerializeAll renders every record of a sheet.
func SerializeAll(sheet SheetInfo, records []Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Serialize(sheet, rec.Cells)
	}
	return rows
}
