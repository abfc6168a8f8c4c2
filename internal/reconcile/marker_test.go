package reconcile

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  fix the parser  ", "fix the parser"},
		{"collapses runs", "fix\t\tthe   parser", "fix the parser"},
		{"lowercases", "Fix The PARSER", "fix the parser"},
		{"newlines and tabs", "fix\nthe\tparser", "fix the parser"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassifyPredefined(t *testing.T) {
	for _, tag := range []string{"TODO", "todo", " Fixme ", "HACK", "bug", "NOTE", "xxx", "OPTIMIZE"} {
		m := Classify(RawMarker{Type: tag, Content: "x", FilePath: "main.go", LineNumber: 3})
		if m.Type == TypeOther {
			t.Errorf("Classify(%q) resolved to OTHER, want predefined type", tag)
		}
		if m.CustomTag != "" {
			t.Errorf("Classify(%q) kept custom tag %q alongside predefined type %s", tag, m.CustomTag, m.Type)
		}
	}
}

func TestClassifyCustomTag(t *testing.T) {
	m := Classify(RawMarker{Type: "REVIEW", Content: "check this", FilePath: "a.go", LineNumber: 1})
	if m.Type != TypeOther {
		t.Fatalf("expected OTHER, got %s", m.Type)
	}
	if m.CustomTag != "REVIEW" {
		t.Errorf("expected custom tag REVIEW, got %q", m.CustomTag)
	}
}

func TestClassifyPreservesLocation(t *testing.T) {
	m := Classify(RawMarker{Type: "TODO", Content: "c", FilePath: "pkg/x.go", LineNumber: 42})
	if m.FilePath != "pkg/x.go" || m.LineNumber != 42 || m.Content != "c" {
		t.Errorf("classification altered marker fields: %+v", m)
	}
}
