package targets

import "strings"

// Column names recognised in a header row.
const (
	ColumnLabel       = "label"
	ColumnDestination = "destination"
	ColumnProtocol    = "protocol"
	ColumnRole        = "role"
)

// columns holds resolved positions for one file.
type columns struct {
	label, destination, protocol, role int
}

var positional = columns{label: 0, destination: 1, protocol: 2, role: 3}

// Normalize turns parsed rows into an ordered, de-duplicated target list.
//
// The first row is a header when it names any known column; otherwise every
// row is data in label,destination,protocol,role order. A column the header
// does not name keeps its positional index. Rows missing a label or a
// destination are dropped, and later duplicates of a destination are ignored.
func Normalize(rows [][]string) []CallTarget {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return []CallTarget{}
	}

	cols, hasHeader := detectHeader(rows[0])
	data := rows
	if hasHeader {
		data = rows[1:]
	}

	out := make([]CallTarget, 0, len(data))
	seen := make(map[string]struct{}, len(data))
	for _, row := range data {
		t := CallTarget{
			Label:       cell(row, cols.label),
			Destination: cell(row, cols.destination),
			Protocol:    NormalizeProtocol(cell(row, cols.protocol)),
			Role:        NormalizeRole(cell(row, cols.role)),
		}
		if t.Label == "" || t.Destination == "" {
			continue
		}
		if _, dup := seen[t.Destination]; dup {
			continue
		}
		seen[t.Destination] = struct{}{}
		out = append(out, t)
	}
	return out
}

// FromCSV parses and normalizes in one step.
func FromCSV(text string) []CallTarget {
	return Normalize(Parse(text))
}

func dropBlankRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		for _, v := range r {
			if strings.TrimSpace(v) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func detectHeader(first []string) (columns, bool) {
	header := make([]string, len(first))
	for i, h := range first {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	find := func(name string, fallback int) (int, bool) {
		for i, h := range header {
			if h == name {
				return i, true
			}
		}
		return fallback, false
	}

	var c columns
	var l, d, p, r bool
	c.label, l = find(ColumnLabel, positional.label)
	c.destination, d = find(ColumnDestination, positional.destination)
	c.protocol, p = find(ColumnProtocol, positional.protocol)
	c.role, r = find(ColumnRole, positional.role)

	if !(l || d || p || r) {
		return positional, false
	}
	return c, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
