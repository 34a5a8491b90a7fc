package librift

import (
	"bytes"
	"strconv"

	"github.com/librift/librift/vm"
)

// Replace substitutes non-overlapping matches of the pattern in input
// with replacement, left to right. A negative max replaces all
// occurrences; max == 0 returns input unchanged. The second result is
// the number of substitutions made.
//
// Inside replacement, $0 through $9 expand to the corresponding group,
// ${name} and ${n} to a named or higher-numbered group, and $$ to a
// literal dollar sign. An unmatched group expands to nothing.
//
//	re := librift.MustCompile(`(\w+)@(\w+)`, 0)
//	out, n, _ := re.Replace([]byte("user@example"), []byte("$2/$1"), -1)
//	// out == []byte("example/user"), n == 1
func (p *Pattern) Replace(input, replacement []byte, max int) ([]byte, int, error) {
	if max == 0 {
		return append([]byte(nil), input...), 0, nil
	}

	var out []byte
	last := 0
	count := 0
	it := p.FindIter(input)
	for it.Next() {
		m := it.Match()
		sp, _ := m.Group(0)
		out = append(out, input[last:sp.Start]...)
		out = expand(out, replacement, input, m)
		last = sp.End
		count++
		if max > 0 && count >= max {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, 0, err
	}
	return append(out, input[last:]...), count, nil
}

// Split slices input around matches of the pattern and returns the
// pieces between them. A negative max returns every piece; max > 0
// returns at most max pieces with the unsplit remainder last; max == 0
// returns nil. The pieces alias input.
//
//	re := librift.MustCompile(`,\s*`, 0)
//	parts, _ := re.Split([]byte("a, b,c"), -1)
//	// parts == [][]byte{[]byte("a"), []byte("b"), []byte("c")}
func (p *Pattern) Split(input []byte, max int) ([][]byte, error) {
	if max == 0 {
		return nil, nil
	}

	spans, err := p.FindAll(input, -1)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return [][]byte{input}, nil
	}

	out := make([][]byte, 0, len(spans)+1)
	last := 0
	for _, sp := range spans {
		if max > 0 && len(out) >= max-1 {
			break
		}
		out = append(out, input[last:sp.Start])
		last = sp.End
	}
	return append(out, input[last:]), nil
}

// expand appends template to dst, substituting group references
// against m.
func expand(dst, template, src []byte, m *vm.MatchResult) []byte {
	for i := 0; i < len(template); {
		c := template[i]
		if c != '$' || i+1 >= len(template) {
			dst = append(dst, c)
			i++
			continue
		}
		next := template[i+1]
		switch {
		case next >= '0' && next <= '9':
			dst = appendGroup(dst, src, m, int(next-'0'))
			i += 2

		case next == '{':
			end := bytes.IndexByte(template[i+2:], '}')
			if end < 0 {
				dst = append(dst, '$')
				i++
				continue
			}
			name := string(template[i+2 : i+2+end])
			if idx, err := strconv.Atoi(name); err == nil {
				dst = appendGroup(dst, src, m, idx)
			} else if sp, ok := m.Named(name); ok {
				dst = append(dst, src[sp.Start:sp.End]...)
			}
			i += 2 + end + 1

		case next == '$':
			dst = append(dst, '$')
			i += 2

		default:
			dst = append(dst, '$')
			i++
		}
	}
	return dst
}

func appendGroup(dst, src []byte, m *vm.MatchResult, idx int) []byte {
	if sp, ok := m.Group(idx); ok {
		dst = append(dst, src[sp.Start:sp.End]...)
	}
	return dst
}
