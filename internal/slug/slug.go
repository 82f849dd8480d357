// Package slug maps issue ids and titles to stable markdown filenames.
package slug

import (
	"fmt"
	"strings"
)

// maxSlugLen bounds the title-derived portion of a filename.
const maxSlugLen = 60

// Slugify lowercases the title and reduces it to hyphen-separated ascii
// alphanumerics. An empty result falls back to "issue".
func Slugify(title string) string {
	out := make([]rune, 0, len(title))
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			lastDash = false
			continue
		}
		if !lastDash {
			out = append(out, '-')
			lastDash = true
		}
	}

	s := strings.Trim(string(out), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "issue"
	}
	return s
}

// Filename returns the canonical filename for an issue, e.g. "42-fix-bug.md".
// Deterministic given (id, title).
func Filename(id int, title string) string {
	return fmt.Sprintf("%d-%s.md", id, Slugify(title))
}

// Dedupe tracks filenames handed out within a single batch so two issues
// slugging identically get distinct names. Each sync run gets a fresh
// instance; it is never shared process-wide.
type Dedupe struct {
	seen map[string]struct{}
}

// NewDedupe returns an empty dedupe set.
func NewDedupe() *Dedupe {
	return &Dedupe{seen: make(map[string]struct{})}
}

// Filename returns the filename for (id, title), appending a numeric suffix
// when the canonical name was already claimed in this batch.
func (d *Dedupe) Filename(id int, title string) string {
	base := fmt.Sprintf("%d-%s", id, Slugify(title))
	name := base + ".md"
	for n := 2; ; n++ {
		if _, taken := d.seen[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s-%d.md", base, n)
	}
	d.seen[name] = struct{}{}
	return name
}
