package internal

import (
	"fmt"
	"strings"
)

// Slugify creates a safe filename slug from a chat title or message.
// Takes the first 50 runes, lowercases alphanumerics and collapses
// everything else to single hyphens.
func Slugify(text string) string {
	runes := []rune(text)
	if len(runes) > 50 {
		runes = runes[:50]
	}

	var b strings.Builder
	lastWasHyphen := true // trims leading hyphens
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastWasHyphen = false
		default:
			if !lastWasHyphen {
				b.WriteByte('-')
				lastWasHyphen = true
			}
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "new-chat"
	}
	return slug
}

// ArchiveFilename builds the deterministic archive filename for a session:
// timestamp, provider, then a slug of the derived title.
func ArchiveFilename(record *SessionRecord) string {
	slug := record.SessionID
	for _, m := range record.Messages {
		if m.Role == RoleUser {
			slug = Slugify(m.Content)
			break
		}
	}
	ts := record.StartedAt.UTC().Format("2006-01-02_15-04-05Z")
	return fmt.Sprintf("%s-%s-%s.md", ts, record.Provider, slug)
}
