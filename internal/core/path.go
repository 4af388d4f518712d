package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Read operation selectors, the first path segment of a GET request.
const (
	OpDocInfo              = "get-doc-info"
	OpGetRows              = "get-rows"
	OpFindRowByID          = "find-row-by-id"
	OpFindRowByColumnValue = "find-row-by-column-name-and-value"
)

// ParsePath splits a resource path, already stripped of its mount prefix,
// into segments. Leading and trailing slashes are ignored and each segment is
// percent-decoded. An empty path yields a single empty segment.
// No validation happens here; see SheetIndexArg and RowIDArg.
func ParsePath(path string) []string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		if decoded, err := url.PathUnescape(s); err == nil {
			segments[i] = decoded
		}
	}
	return segments
}

// SheetIndexArg parses a zero-based sheet index segment.
func SheetIndexArg(segment string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(segment))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: sheet index %q is not a non-negative integer", ErrMalformedRequest, segment)
	}
	return n, nil
}

// RowIDArg parses a row identifier segment.
func RowIDArg(segment string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(segment))
	if err != nil {
		return 0, fmt.Errorf("%w: row id %q is not an integer", ErrMalformedRequest, segment)
	}
	return n, nil
}
