package targets

import "strings"

const bom = "\ufeff"

// Parse splits comma-separated text into rows of raw fields.
//
// Quoting follows the usual CSV rules ("" inside quotes is a literal quote,
// quoted fields may hold commas and newlines). Carriage returns are dropped
// everywhere. Parse never fails: an unterminated quote runs to end of input.
func Parse(text string) [][]string {
	text = strings.TrimPrefix(text, bom)

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if ch == '\r' {
			continue
		}

		if inQuotes {
			if ch == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			field.WriteByte(ch)
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
		case ',':
			row = append(row, field.String())
			field.Reset()
		case '\n':
			row = append(row, field.String())
			rows = append(rows, row)
			row = nil
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		row = append(row, field.String())
		rows = append(rows, row)
	}

	return rows
}
