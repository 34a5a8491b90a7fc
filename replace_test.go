package librift

import (
	"testing"
)

func TestReplace(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		repl    string
		max     int
		want    string
		count   int
	}{
		{"literal", `\d+`, "age: 42", "XX", -1, "age: XX", 1},
		{"groups", `(\w+)@(\w+)\.(\w+)`, "user@example.com", "$1 at $2 dot $3", -1, "user at example dot com", 1},
		{"whole match", `\d+`, "age: 42", "[$0]", -1, "age: [42]", 1},
		{"multiple", `(\d+)`, "1 2 3", "($1)", -1, "(1) (2) (3)", 3},
		{"dollar escape", `\d+`, "price: 10", "$$", -1, "price: $", 1},
		{"absent group", `\d+`, "age: 42", "$1", -1, "age: ", 1},
		{"named groups", `(?P<user>\w+)@(?P<host>\w+)`, "bob@host", "${host}/${user}", -1, "host/bob", 1},
		{"braced index", `(\w)(\w)`, "ab", "${2}${1}", -1, "ba", 1},
		{"max caps count", `\d`, "1 2 3", "X", 2, "X X 3", 2},
		{"max zero copies", `\d`, "1 2 3", "X", 0, "1 2 3", 0},
		{"no match", `z+`, "abc", "X", -1, "abc", 0},
		{"empty matches", `a*`, "b", "-", -1, "-b-", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := MustCompile(tt.pattern, 0)
			got, n, err := re.Replace([]byte(tt.input), []byte(tt.repl), tt.max)
			if err != nil {
				t.Fatalf("Replace: %v", err)
			}
			if string(got) != tt.want || n != tt.count {
				t.Errorf("Replace(%q, %q, %d) = %q, %d, want %q, %d",
					tt.input, tt.repl, tt.max, got, n, tt.want, tt.count)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		max     int
		want    []string
	}{
		{"commas", `,`, "a,b,c", -1, []string{"a", "b", "c"}},
		{"max two", `,`, "a,b,c", 2, []string{"a", "b,c"}},
		{"max zero", `,`, "a,b,c", 0, nil},
		{"no separator", `,`, "abc", -1, []string{"abc"}},
		{"runs of space", `\s+`, "a  b   c", -1, []string{"a", "b", "c"}},
		{"edge separators", `\s+`, "  a  b  ", -1, []string{"", "a", "b", ""}},
		{"remainder kept", `,`, "a,b,c,d,e", 3, []string{"a", "b", "c,d,e"}},
		{"adjacent matches", `a`, "aaa", -1, []string{"", "", "", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := MustCompile(tt.pattern, 0)
			parts, err := re.Split([]byte(tt.input), tt.max)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			var got []string
			for _, p := range parts {
				got = append(got, string(p))
			}
			if !stringsEqual(got, tt.want) {
				t.Errorf("Split(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestExpandEdgeCases(t *testing.T) {
	re := MustCompile(`(\d+)`, 0)
	input := []byte("test 123 end")
	m, err := re.Capture(input, 0)
	if err != nil || m == nil {
		t.Fatalf("Capture = %v, %v", m, err)
	}

	tests := []struct {
		template string
		want     string
	}{
		{"$0", "123"},
		{"$1", "123"},
		{"$$", "$"},
		{"$${foo}", "${foo}"},
		{"before $1 after", "before 123 after"},
		{"$", "$"},
		{"${", "${"},
		{"${name}", ""},
		{"$9", ""},
		{"plain", "plain"},
		{"$0$0", "123123"},
		{"$1 and $1", "123 and 123"},
	}

	for _, tt := range tests {
		got := string(expand(nil, []byte(tt.template), input, m))
		if got != tt.want {
			t.Errorf("expand(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
