package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CrazyForks/waylog-cli/internal"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

// Render converts a session record to its canonical archive bytes.
// Deterministic: identical records always produce identical bytes, which
// hash-based idempotency depends on. Message content is emitted verbatim.
func Render(record *internal.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	head, err := NewFrontmatter(record).Render()
	if err != nil {
		return nil, err
	}
	buf.Write(head)
	buf.WriteByte('\n')

	fmt.Fprintf(&buf, "# %s\n\n", record.Title())

	for _, msg := range record.Messages {
		buf.WriteString(FormatMessage(msg))
		buf.WriteString("\n\n")
	}
	return buf.Bytes(), nil
}

// RenderOpen renders the head of a live archive: frontmatter without
// completion-dependent fields, plus the title. The transcript body is
// appended message by message afterwards.
func RenderOpen(record *internal.SessionRecord) ([]byte, error) {
	open := *record
	open.EndedAt = time.Time{}
	fm := NewFrontmatter(&open)
	fm.MessageCount = 0
	fm.TotalTokens = 0

	head, err := fm.Render()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(head)
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "# %s\n\n", record.Title())
	return buf.Bytes(), nil
}

// FormatMessage renders one message block with its stable role marker.
func FormatMessage(msg internal.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s (%s)\n\n", roleMarker(msg.Role), msg.Timestamp.UTC().Format(timestampLayout))
	b.WriteString(msg.Content)
	b.WriteByte('\n')

	if len(msg.Meta.ToolCalls) > 0 {
		b.WriteString("\n**Tools Used:**\n")
		for _, tool := range msg.Meta.ToolCalls {
			fmt.Fprintf(&b, "- `%s`\n", tool)
		}
	}

	if len(msg.Meta.Thoughts) > 0 {
		b.WriteString("\n<details>\n<summary>Thoughts</summary>\n\n")
		for _, thought := range msg.Meta.Thoughts {
			fmt.Fprintf(&b, "- %s\n", thought)
		}
		b.WriteString("\n</details>\n")
	}

	return b.String()
}

// AppendMessages writes message blocks in append-only form, matching the
// byte shape Render gives them.
func AppendMessages(w io.Writer, msgs []internal.Message) error {
	for _, msg := range msgs {
		if _, err := io.WriteString(w, FormatMessage(msg)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n\n"); err != nil {
			return err
		}
	}
	return nil
}

func roleMarker(role internal.Role) string {
	switch role {
	case internal.RoleUser:
		return "👤 User"
	case internal.RoleAssistant:
		return "🤖 Assistant"
	case internal.RoleSystem:
		return "⚙️ System"
	case internal.RoleTool:
		return "🔧 Tool"
	default:
		return "👤 User"
	}
}
