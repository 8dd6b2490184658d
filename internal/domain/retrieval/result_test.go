package retrieval

import "testing"

func TestFormat(t *testing.T) {
	got := Format("Found 2 pages:", []Result{
		{Title: "Access Control", Reference: "p1", Content: "MFA everywhere"},
		{Title: "Backups"},
	})

	want := "Found 2 pages:\n\n1. Access Control (p1)\nMFA everywhere\n\n2. Backups"
	if got != want {
		t.Errorf("Format =\n%q\nwant\n%q", got, want)
	}
}
