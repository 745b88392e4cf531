package main

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("renderTable() with no headers = %q, want empty", got)
	}

	out := renderTable(
		[]string{"Original", "Every"},
		[][]string{{"/src/a.txt", "5 minutes"}, {"/src/b.txt"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	// go-pretty upper-cases header cells by default.
	for _, want := range []string{"ORIGINAL", "EVERY", "/src/a.txt", "5 minutes", "/src/b.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderTable() output missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n") + 1; lines != 6 {
		t.Errorf("renderTable() produced %d lines, want 6:\n%s", lines, out)
	}
}
