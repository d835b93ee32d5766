package internal

import (
	"testing"
	"time"

	"github.com/CrazyForks/waylog-cli/testutil"
)

func newTestCodex(t *testing.T) (*CodexProvider, string) {
	t.Helper()
	root := t.TempDir()
	return &CodexProvider{root: root, matcher: DefaultMatcher()}, root
}

func TestCodexSessionsAttribution(t *testing.T) {
	provider, root := newTestCodex(t)
	project := testutil.TempProject(t)
	other := testutil.TempProject(t)

	base := testutil.BaseTime()
	mine := testutil.WriteCodexSession(t, root, "rollout-mine", project, []testutil.Msg{
		{Role: "user", Content: "hello from my project", At: base},
	})
	testutil.WriteCodexSession(t, root, "rollout-other", other, []testutil.Msg{
		{Role: "user", Content: "hello from elsewhere", At: base},
	})

	refs, err := provider.Sessions(project)
	if err != nil {
		t.Fatalf("Sessions(): %v", err)
	}
	if len(refs) != 1 || refs[0] != mine {
		t.Errorf("Sessions() = %v, want only %s", refs, mine)
	}
}

func TestCodexSessionsMissingStore(t *testing.T) {
	provider := &CodexProvider{root: "/nonexistent/codex", matcher: DefaultMatcher()}
	refs, err := provider.Sessions("/some/project")
	if err != nil {
		t.Fatalf("Sessions() on missing store: %v", err)
	}
	if refs != nil {
		t.Errorf("Sessions() = %v, want nil", refs)
	}
}

func TestCodexParseSession(t *testing.T) {
	provider, root := newTestCodex(t)
	project := testutil.TempProject(t)

	base := testutil.BaseTime()
	ref := testutil.WriteCodexSession(t, root, "rollout-2025-03-14", project, []testutil.Msg{
		{Role: "user", Content: "What does this error mean?", At: base},
		{Role: "assistant", Content: "It means the port is taken.", At: base.Add(5 * time.Second)},
	})

	record, err := provider.ParseSession(ref)
	if err != nil {
		t.Fatalf("ParseSession(): %v", err)
	}

	// Codex names sessions by filename, not by an embedded id.
	if record.SessionID != "rollout-2025-03-14" {
		t.Errorf("SessionID = %q, want rollout-2025-03-14", record.SessionID)
	}
	if record.ProjectPath != project {
		t.Errorf("ProjectPath = %q, want %q", record.ProjectPath, project)
	}
	if len(record.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(record.Messages))
	}
	if record.Messages[0].Content != "What does this error mean?" {
		t.Errorf("Messages[0].Content = %q", record.Messages[0].Content)
	}
}

func TestCodexParseSessionFiltersInjections(t *testing.T) {
	provider, root := newTestCodex(t)
	project := testutil.TempProject(t)

	base := testutil.BaseTime()
	ref := testutil.WriteCodexSession(t, root, "rollout-injected", project,
		[]testutil.Msg{
			{Role: "user", Content: "real question", At: base},
		},
		"<environment_context>cwd: /x</environment_context>",
		"<INSTRUCTIONS>always be terse</INSTRUCTIONS>",
		"# AGENTS.md instructions\n\ndo things",
	)

	record, err := provider.ParseSession(ref)
	if err != nil {
		t.Fatalf("ParseSession(): %v", err)
	}
	if len(record.Messages) != 1 {
		t.Fatalf("got %d messages, want 1 (injections filtered)", len(record.Messages))
	}
	if record.Messages[0].Content != "real question" {
		t.Errorf("surviving message = %q, want the real question", record.Messages[0].Content)
	}
}

func TestCodexParseSessionDeduplicates(t *testing.T) {
	provider, root := newTestCodex(t)
	project := testutil.TempProject(t)

	base := testutil.BaseTime()
	ref := testutil.WriteCodexSession(t, root, "rollout-dup", project, []testutil.Msg{
		{Role: "user", Content: "run the tests", At: base},
		{Role: "user", Content: "run the tests", At: base.Add(time.Second)},
		{Role: "assistant", Content: "done", At: base.Add(2 * time.Second)},
	})

	record, err := provider.ParseSession(ref)
	if err != nil {
		t.Fatalf("ParseSession(): %v", err)
	}
	if len(record.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 (consecutive duplicate dropped)", len(record.Messages))
	}
}

func TestCodexLatestSession(t *testing.T) {
	provider, root := newTestCodex(t)
	project := testutil.TempProject(t)

	// LatestSession only looks at the last 7 day directories, so fixtures
	// go under today's date.
	now := time.Now().UTC()
	ref := testutil.WriteCodexSession(t, root, "rollout-today", project, []testutil.Msg{
		{Role: "user", Content: "hi", At: now},
	})

	got, err := provider.LatestSession(project)
	if err != nil {
		t.Fatalf("LatestSession(): %v", err)
	}
	if got != ref {
		t.Errorf("LatestSession() = %q, want %q", got, ref)
	}
}
