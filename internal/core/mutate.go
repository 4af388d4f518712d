package core

import (
	"fmt"
	"slices"
)

// NextID returns one more than the largest id in rows, or 1 when no id
// parses. For rows appended in id order this is the last row's id plus one.
func NextID(rows []Row) int {
	maxID := 0
	for _, r := range rows {
		v, ok := r.Get(IDColumn)
		if !ok {
			continue
		}
		if n, ok := ParseID(v); ok && n > maxID {
			maxID = n
		}
	}
	return maxID + 1
}

// checkColumns verifies every payload key is a declared column of sheet.
func checkColumns(sheet SheetInfo, payload Row) error {
	for _, k := range payload.Keys() {
		if !slices.Contains(sheet.Headers, k) {
			return fmt.Errorf("%w: %q is not a column of sheet %q", ErrUnknownColumn, k, sheet.Title)
		}
	}
	return nil
}

// mergeCells overwrites cells with every field of patch. Fields absent from
// patch keep their prior values. The input map is not modified.
func mergeCells(cells map[string]any, patch Row) map[string]any {
	out := make(map[string]any, len(cells)+patch.Len())
	for k, v := range cells {
		out[k] = v
	}
	for _, k := range patch.Keys() {
		v, _ := patch.Get(k)
		out[k] = v
	}
	return out
}
