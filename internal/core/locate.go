package core

// NotFound is the position reported when no row matches.
const NotFound = -1

// LocateByID returns the position of the first row whose id column parses
// to id. Duplicate ids resolve to the earliest row.
func LocateByID(rows []Row, id int) int {
	for i, row := range rows {
		v, ok := row.Get(IDColumn)
		if !ok {
			continue
		}
		if n, ok := ParseID(v); ok && n == id {
			return i
		}
	}
	return NotFound
}

// LocateByColumnValue returns the position of the first row whose value in
// the named column equals value. Column name and value are compared in
// Normalize form; empty cells never match. A column absent from headers
// yields NotFound.
func LocateByColumnValue(headers []string, rows []Row, column, value string) int {
	header, ok := resolveColumn(headers, column)
	if !ok {
		return NotFound
	}

	target := Normalize(value)
	for i, row := range rows {
		v, ok := row.Get(header)
		if !ok {
			continue
		}
		cell := Normalize(valueString(v))
		if cell == "" {
			continue
		}
		if cell == target {
			return i
		}
	}
	return NotFound
}

// resolveColumn finds the declared header matching column in Normalize form.
func resolveColumn(headers []string, column string) (string, bool) {
	want := Normalize(column)
	for _, h := range headers {
		if Normalize(h) == want {
			return h, true
		}
	}
	return "", false
}
