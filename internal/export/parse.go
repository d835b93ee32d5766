package export

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/CrazyForks/waylog-cli/internal"
)

var messageHeaderRe = regexp.MustCompile(`^## (👤 User|🤖 Assistant|⚙️ System|🔧 Tool) \((.+)\)$`)

// ParseArchive re-parses rendered archive bytes into frontmatter and the
// ordered message sequence. Round-trip guarantee: an archive rendered from
// N messages parses back into the same N messages, same order, same
// content (vendor meta sections are not reconstructed).
func ParseArchive(data []byte) (Frontmatter, []internal.Message, error) {
	fm, body, err := ParseFrontmatter(data)
	if err != nil {
		return fm, nil, err
	}

	var messages []internal.Message
	var current *internal.Message
	var content []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = trimMessageBody(content)
		current.Seq = len(messages) + 1
		messages = append(messages, *current)
		current = nil
		content = nil
	}

	for _, line := range strings.Split(string(body), "\n") {
		m := messageHeaderRe.FindStringSubmatch(line)
		if m == nil {
			if current != nil {
				content = append(content, line)
			}
			continue
		}

		flush()
		msg := internal.Message{Role: markerRole(m[1])}
		if ts, err := time.Parse(timestampLayout, m[2]); err == nil {
			msg.Timestamp = ts.UTC()
		}
		current = &msg
	}
	flush()

	return fm, messages, nil
}

// ParseArchiveFile reads and parses one archive file.
func ParseArchiveFile(path string) (Frontmatter, []internal.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Frontmatter{}, nil, err
	}
	return ParseArchive(data)
}

// trimMessageBody strips the leading blank separator, trailing blank lines,
// and the rendered vendor meta sections, leaving the verbatim content.
func trimMessageBody(lines []string) string {
	// Meta sections start at a fixed marker line.
	for i, line := range lines {
		if line == "**Tools Used:**" || line == "<details>" {
			lines = lines[:i]
			break
		}
	}

	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

func markerRole(marker string) internal.Role {
	switch {
	case strings.HasSuffix(marker, "Assistant"):
		return internal.RoleAssistant
	case strings.HasSuffix(marker, "System"):
		return internal.RoleSystem
	case strings.HasSuffix(marker, "Tool"):
		return internal.RoleTool
	default:
		return internal.RoleUser
	}
}
