package journal

import (
	"testing"
	"time"

	"github.com/redmd/redmd/internal/redmine"
)

func intPtr(n int) *int { return &n }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(id int, author, notes, createdOn string, details ...redmine.Detail) redmine.Journal {
	return redmine.Journal{
		ID:        id,
		User:      redmine.Named{Name: author},
		Notes:     notes,
		CreatedOn: ts(createdOn),
		Details:   details,
	}
}

func TestSelectNew(t *testing.T) {
	entries := []redmine.Journal{
		entry(3, "a", "one", "2024-01-01T10:00:00Z"),
		entry(7, "b", "two", "2024-01-02T10:00:00Z"),
		entry(12, "c", "three", "2024-01-03T10:00:00Z"),
	}

	tests := []struct {
		name    string
		lastID  *int
		wantIDs []int
	}{
		{name: "no marker returns full history", lastID: nil, wantIDs: []int{3, 7, 12}},
		{name: "marker filters older ids", lastID: intPtr(7), wantIDs: []int{12}},
		{name: "marker below all", lastID: intPtr(1), wantIDs: []int{3, 7, 12}},
		{name: "marker at max", lastID: intPtr(12), wantIDs: nil},
		{name: "marker above all", lastID: intPtr(99), wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectNew(entries, tt.lastID)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("SelectNew() returned %d entries, want %d", len(got), len(tt.wantIDs))
			}
			for i, e := range got {
				if e.ID != tt.wantIDs[i] {
					t.Errorf("entry %d id = %d, want %d", i, e.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestSelectNewPreservesInputOrder(t *testing.T) {
	// Ids out of order in the input stay out of order: no re-sorting here.
	entries := []redmine.Journal{
		entry(9, "a", "later", "2024-01-03T10:00:00Z"),
		entry(5, "b", "earlier", "2024-01-01T10:00:00Z"),
	}

	got := SelectNew(entries, intPtr(2))
	if len(got) != 2 || got[0].ID != 9 || got[1].ID != 5 {
		t.Errorf("SelectNew() reordered input: %v", got)
	}
}

func TestMaxID(t *testing.T) {
	if got := MaxID(nil); got != 0 {
		t.Errorf("MaxID(nil) = %d, want 0", got)
	}
	entries := []redmine.Journal{
		entry(5, "a", "", "2024-01-01T10:00:00Z"),
		entry(19, "b", "", "2024-01-02T10:00:00Z"),
		entry(11, "c", "", "2024-01-03T10:00:00Z"),
	}
	if got := MaxID(entries); got != 19 {
		t.Errorf("MaxID() = %d, want 19", got)
	}
}

func TestRenderSingleEntry(t *testing.T) {
	entries := []redmine.Journal{
		entry(4, "Alice", "Looks good to me.", "2024-03-05T14:30:00Z"),
	}

	want := "### Alice - 2024-03-05 14:30\n\nLooks good to me."
	if got := Render(entries, TrackByID); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderWithChanges(t *testing.T) {
	entries := []redmine.Journal{
		entry(4, "Alice", "Resolving.", "2024-03-05T14:30:00Z",
			redmine.Detail{Property: "attr", Name: "status", OldValue: "New", NewValue: "Resolved"},
			redmine.Detail{Property: "attr", Name: "assignee", OldValue: "", NewValue: "Alice"},
		),
	}

	want := "### Alice - 2024-03-05 14:30\n\n" +
		"Resolving.\n\n" +
		"**Changes**\n\n" +
		"- status: New → Resolved\n" +
		"- assignee: (none) → Alice"
	if got := Render(entries, TrackByID); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderSkipsSilentEntries(t *testing.T) {
	entries := []redmine.Journal{
		entry(1, "Alice", "", "2024-01-01T10:00:00Z",
			redmine.Detail{Property: "attr", Name: "status", OldValue: "New", NewValue: "Closed"}),
		entry(2, "Bob", "   \n", "2024-01-02T10:00:00Z"),
	}

	if got := Render(entries, TrackByID); got != "" {
		t.Errorf("Render() of silent entries = %q, want empty", got)
	}
}

func TestRenderMultipleEntriesDelimited(t *testing.T) {
	entries := []redmine.Journal{
		entry(1, "Alice", "first", "2024-01-01T10:00:00Z"),
		entry(2, "Bob", "second", "2024-01-02T11:15:00Z"),
	}

	want := "### Alice - 2024-01-01 10:00\n\nfirst\n\n---\n\n### Bob - 2024-01-02 11:15\n\nsecond"
	if got := Render(entries, TrackByID); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderOrdering(t *testing.T) {
	// Id order and timestamp order deliberately disagree.
	entries := []redmine.Journal{
		entry(2, "Bob", "id two, earlier time", "2024-01-01T08:00:00Z"),
		entry(1, "Alice", "id one, later time", "2024-01-05T08:00:00Z"),
	}

	byID := Render(entries, TrackByID)
	if want := "### Alice - 2024-01-05 08:00\n\nid one, later time\n\n---\n\n### Bob - 2024-01-01 08:00\n\nid two, earlier time"; byID != want {
		t.Errorf("Render(TrackByID) = %q, want %q", byID, want)
	}

	byTime := Render(entries, TrackByCreatedOn)
	if want := "### Bob - 2024-01-01 08:00\n\nid two, earlier time\n\n---\n\n### Alice - 2024-01-05 08:00\n\nid one, later time"; byTime != want {
		t.Errorf("Render(TrackByCreatedOn) = %q, want %q", byTime, want)
	}
}

func TestRenderDoesNotMutateInput(t *testing.T) {
	entries := []redmine.Journal{
		entry(2, "Bob", "b", "2024-01-02T10:00:00Z"),
		entry(1, "Alice", "a", "2024-01-01T10:00:00Z"),
	}

	Render(entries, TrackByID)
	if entries[0].ID != 2 || entries[1].ID != 1 {
		t.Error("Render() sorted the caller's slice")
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		rendered string
		want     string
	}{
		{name: "nothing new keeps existing", existing: "A", rendered: "", want: "A"},
		{name: "no existing returns rendered", existing: "", rendered: "B", want: "B"},
		{name: "both joined by delimiter", existing: "A", rendered: "B", want: "A\n\n---\n\nB"},
		{name: "both empty", existing: "", rendered: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Merge(tt.existing, tt.rendered); got != tt.want {
				t.Errorf("Merge(%q, %q) = %q, want %q", tt.existing, tt.rendered, got, tt.want)
			}
		})
	}
}
