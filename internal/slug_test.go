package internal

import (
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"Fix the  login   bug!!", "fix-the-login-bug"},
		{"already-slugged", "already-slugged"},
		{"Mixed CASE and 123 numbers", "mixed-case-and-123-numbers"},
		{"", "new-chat"},
		{"!!!???", "new-chat"},
		{"---leading and trailing---", "leading-and-trailing"},
		{"héllo wörld", "h-llo-w-rld"},
	}

	for _, tt := range tests {
		got := Slugify(tt.input)
		if got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSlugifyTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcde"
	}
	got := Slugify(long)
	if len(got) > 50 {
		t.Errorf("Slugify() returned %d runes, want at most 50", len(got))
	}
}

func TestArchiveFilename(t *testing.T) {
	record := &SessionRecord{
		SessionID: "abc-123",
		Provider:  "claude",
		StartedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Messages: []Message{
			{Role: RoleAssistant, Content: "Hello! How can I help?"},
			{Role: RoleUser, Content: "Fix the login bug"},
		},
	}

	got := ArchiveFilename(record)
	want := "2025-03-14_09-26-53Z-claude-fix-the-login-bug.md"
	if got != want {
		t.Errorf("ArchiveFilename() = %q, want %q", got, want)
	}
}

func TestArchiveFilenameFallsBackToSessionID(t *testing.T) {
	record := &SessionRecord{
		SessionID: "abc-123",
		Provider:  "codex",
		StartedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Messages: []Message{
			{Role: RoleAssistant, Content: "unsolicited greeting"},
		},
	}

	got := ArchiveFilename(record)
	want := "2025-03-14_09-26-53Z-codex-abc-123.md"
	if got != want {
		t.Errorf("ArchiveFilename() = %q, want %q", got, want)
	}
}
