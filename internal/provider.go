package internal

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Provider adapts one vendor's on-disk session store. Implementations
// never mutate vendor files; every read is read-only.
type Provider interface {
	// Name is the provider identifier used in frontmatter and the ledger.
	Name() string

	// Command is the vendor executable wrapped by `run`.
	Command() string

	// Installed reports whether the vendor tool is usable on this machine.
	Installed() bool

	// SessionDir is the store location scanned for the given project.
	SessionDir(projectPath string) (string, error)

	// Sessions returns refs of all sessions attributed to the project,
	// newest first. A missing store yields an empty slice; an unreadable
	// one yields a *StoreError.
	Sessions(projectPath string) ([]string, error)

	// LatestSession returns the most recently active session ref for the
	// project, or "" when none exists.
	LatestSession(projectPath string) (string, error)

	// ParseSession converts one vendor record into a canonical
	// SessionRecord. Corrupt records yield a *RecordError.
	ParseSession(ref string) (*SessionRecord, error)
}

// Providers returns all supported provider adapters with the default
// attribution policy.
func Providers() []Provider {
	m := DefaultMatcher()
	return []Provider{
		NewClaudeProvider(m),
		NewCodexProvider(m),
		NewGeminiProvider(m),
		NewCursorProvider(m),
	}
}

// ProviderByName resolves a provider identifier.
func ProviderByName(name string) (Provider, error) {
	for _, p := range Providers() {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown provider: %s (supported: %s)", name, providerNames())
}

func providerNames() string {
	names := make([]string, 0, 4)
	for _, p := range Providers() {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func commandInstalled(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
