// Package journal renders issue journal entries to markdown and merges them
// into the existing comment block of a local document. It is purely additive:
// text already rendered into a document is never rewritten or reordered.
package journal

import (
	"fmt"
	"slices"
	"strings"

	"github.com/redmd/redmd/internal/redmine"
)

// TrackBy selects the ordering of rendered entries.
type TrackBy string

const (
	// TrackByID orders entries by journal id ascending.
	TrackByID TrackBy = "id"
	// TrackByCreatedOn orders entries by creation timestamp ascending.
	TrackByCreatedOn TrackBy = "created_on"
)

// delimiter separates rendered entries and merged blocks.
const delimiter = "---"

// absentValue stands in for an empty old or new value in a change record.
const absentValue = "(none)"

// SelectNew returns the entries not yet recorded locally: all of them when no
// high-water mark exists (first sync pulls full history), otherwise only those
// with an id strictly greater than lastID. Input order is preserved.
func SelectNew(entries []redmine.Journal, lastID *int) []redmine.Journal {
	if lastID == nil {
		return entries
	}
	var out []redmine.Journal
	for _, e := range entries {
		if e.ID > *lastID {
			out = append(out, e)
		}
	}
	return out
}

// MaxID returns the highest journal id among entries, or 0 if none.
func MaxID(entries []redmine.Journal) int {
	id := 0
	for _, e := range entries {
		if e.ID > id {
			id = e.ID
		}
	}
	return id
}

// Render formats entries as markdown, ordered by trackBy. Entries with an
// empty note render nothing: pure status changes stay invisible. Each visible
// entry gets a heading with author and timestamp, the note text, and a
// bulleted change list when field changes accompany the note.
func Render(entries []redmine.Journal, trackBy TrackBy) string {
	sorted := slices.Clone(entries)
	if trackBy == TrackByCreatedOn {
		slices.SortStableFunc(sorted, func(a, b redmine.Journal) int {
			return a.CreatedOn.Compare(b.CreatedOn)
		})
	} else {
		slices.SortStableFunc(sorted, func(a, b redmine.Journal) int {
			return a.ID - b.ID
		})
	}

	var b strings.Builder
	for _, e := range sorted {
		note := strings.TrimSpace(e.Notes)
		if note == "" {
			continue
		}

		fmt.Fprintf(&b, "### %s - %s\n\n", e.User.Name, e.CreatedOn.Format("2006-01-02 15:04"))
		b.WriteString(note)
		b.WriteString("\n")

		if len(e.Details) > 0 {
			b.WriteString("\n**Changes**\n\n")
			for _, d := range e.Details {
				fmt.Fprintf(&b, "- %s: %s → %s\n", d.Name, orAbsent(d.OldValue), orAbsent(d.NewValue))
			}
		}

		b.WriteString("\n" + delimiter + "\n\n")
	}

	return trimTrailingDelimiter(b.String())
}

// trimTrailingDelimiter removes the final delimiter and any trailing
// whitespace from rendered output.
func trimTrailingDelimiter(s string) string {
	s = strings.TrimRight(s, " \t\n")
	s = strings.TrimSuffix(s, delimiter)
	return strings.TrimRight(s, " \t\n")
}

func orAbsent(v string) string {
	if v == "" {
		return absentValue
	}
	return v
}

// Merge appends newly rendered text to the existing comment block. When
// nothing new was rendered the existing text is returned untouched; history is
// never re-rendered.
func Merge(existing, rendered string) string {
	if rendered == "" {
		return existing
	}
	if existing == "" {
		return rendered
	}
	return existing + "\n\n" + delimiter + "\n\n" + rendered
}
