package sqlstore

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/shadowridgedev/atomspace/atom"
)

// Wire encoding of SQL array literals: `{e1, e2, ...}`. Numeric elements are
// bare; string elements are double-quoted, with embedded quotes and
// backslashes escaped. The reader accepts both quoted and bare string
// elements, since the backend emits bare form for strings that need no
// quoting.

func formatUUIDArray(uuids []atom.UUID) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, u := range uuids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatUint(uint64(u), 10))
	}
	b.WriteByte('}')
	return b.String()
}

func formatFloatArray(vals []float64) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte('}')
	return b.String()
}

func formatStringArray(vals []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('"')
		for j := 0; j < len(v); j++ {
			if v[j] == '"' || v[j] == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(v[j])
		}
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func parseUUIDArray(s string) ([]atom.UUID, error) {
	var out []atom.UUID
	for _, tok := range splitArray(s) {
		u, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad uuid element %q", tok)
		}
		out = append(out, atom.UUID(u))
	}
	return out, nil
}

func parseFloatArray(s string) ([]float64, error) {
	var out []float64
	for _, tok := range splitArray(s) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad float element %q", tok)
		}
		out = append(out, f)
	}
	return out, nil
}

// splitArray tokenizes the bare (unquoted) elements of an array literal.
func splitArray(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var toks = strings.Split(s, ",")
	for i := range toks {
		toks[i] = strings.TrimSpace(toks[i])
	}
	return toks
}

// parseStringArray tokenizes a text-array literal, unescaping quoted
// elements. Embedded commas, quotes and backslashes survive the round trip.
func parseStringArray(s string) []string {
	var out []string
	var i, n = 0, len(s)

	if i < n && s[i] == '{' {
		i++
	}
	for i < n {
		for i < n && (s[i] == ' ' || s[i] == ',') {
			i++
		}
		if i >= n || s[i] == '}' {
			break
		}
		if s[i] == '"' {
			i++
			var b strings.Builder
			for i < n && s[i] != '"' {
				if s[i] == '\\' && i+1 < n {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
			i++ // Closing quote.
			out = append(out, b.String())
		} else {
			var start = i
			for i < n && s[i] != ',' && s[i] != '}' {
				i++
			}
			out = append(out, strings.TrimSpace(s[start:i]))
		}
	}
	return out
}
