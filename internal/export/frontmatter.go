package export

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CrazyForks/waylog-cli/internal"
)

// Frontmatter is the fixed metadata block at the head of an archive file.
// Fields the vendor did not report are omitted, never guessed; ended_at
// and the final message_count appear only once a session is closed.
type Frontmatter struct {
	Provider     string   `yaml:"provider"`
	SessionID    string   `yaml:"session_id"`
	Project      string   `yaml:"project,omitempty"`
	StartedAt    string   `yaml:"started_at"`
	EndedAt      string   `yaml:"ended_at,omitempty"`
	MessageCount int      `yaml:"message_count,omitempty"`
	TotalTokens  int      `yaml:"total_tokens,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
}

// NewFrontmatter derives the frontmatter block from a session record.
func NewFrontmatter(record *internal.SessionRecord) Frontmatter {
	fm := Frontmatter{
		Provider:     record.Provider,
		SessionID:    record.SessionID,
		Project:      record.ProjectPath,
		StartedAt:    record.StartedAt.UTC().Format(time.RFC3339),
		MessageCount: len(record.Messages),
		TotalTokens:  record.TotalTokens(),
	}
	if record.Closed() {
		fm.EndedAt = record.EndedAt.UTC().Format(time.RFC3339)
	}
	return fm
}

// Render emits the frontmatter as a fenced YAML block. yaml.Marshal keeps
// struct field order, which keeps archive bytes deterministic.
func (fm Frontmatter) Render() ([]byte, error) {
	body, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+8)
	out = append(out, "---\n"...)
	out = append(out, body...)
	out = append(out, "---\n"...)
	return out, nil
}

// ParseFrontmatter reads the fenced YAML block from rendered archive bytes
// and returns the remaining body.
func ParseFrontmatter(data []byte) (Frontmatter, []byte, error) {
	var fm Frontmatter

	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		return fm, nil, fmt.Errorf("missing frontmatter delimiter")
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return fm, nil, fmt.Errorf("unterminated frontmatter block")
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return fm, nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	return fm, []byte(rest[end+len("\n---\n"):]), nil
}

// ReadFrontmatter parses only the head of an archive file. Used to restore
// session identity from disk without loading whole transcripts.
func ReadFrontmatter(path string) (Frontmatter, error) {
	var fm Frontmatter

	f, err := os.Open(path)
	if err != nil {
		return fm, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() || scanner.Text() != "---" {
		return fm, fmt.Errorf("%s: missing frontmatter delimiter", path)
	}

	var block strings.Builder
	terminated := false
	for scanner.Scan() {
		line := scanner.Text()
		if line == "---" {
			terminated = true
			break
		}
		block.WriteString(line)
		block.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fm, err
	}
	if !terminated {
		return fm, fmt.Errorf("%s: unterminated frontmatter block", path)
	}

	if err := yaml.Unmarshal([]byte(block.String()), &fm); err != nil {
		return fm, fmt.Errorf("%s: invalid frontmatter: %w", path, err)
	}
	return fm, nil
}
