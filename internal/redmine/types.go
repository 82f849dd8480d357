package redmine

import "time"

// Named is a resource reference carrying just an id and display name.
type Named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Detail is one field-change record inside a journal entry.
type Detail struct {
	Property string `json:"property"`
	Name     string `json:"name"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Journal is one entry in an issue's history: ids are assigned monotonically
// by the server but are not necessarily contiguous. Notes may be empty for
// change-only entries.
type Journal struct {
	ID        int       `json:"id"`
	User      Named     `json:"user"`
	Notes     string    `json:"notes"`
	CreatedOn time.Time `json:"created_on"`
	Details   []Detail  `json:"details"`
}

// Relation links two issues.
type Relation struct {
	ID           int    `json:"id"`
	IssueID      int    `json:"issue_id"`
	IssueToID    int    `json:"issue_to_id"`
	RelationType string `json:"relation_type"`
	Delay        *int   `json:"delay"`
}

// Attachment is a file attached to an issue.
type Attachment struct {
	ID          int       `json:"id"`
	Filename    string    `json:"filename"`
	Filesize    int64     `json:"filesize"`
	ContentType string    `json:"content_type"`
	Author      Named     `json:"author"`
	CreatedOn   time.Time `json:"created_on"`
	ContentURL  string    `json:"content_url"`
}

// Issue is a read-only snapshot of a remote issue.
type Issue struct {
	ID          int          `json:"id"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	Status      Named        `json:"status"`
	Priority    Named        `json:"priority"`
	Author      Named        `json:"author"`
	AssignedTo  *Named       `json:"assigned_to"`
	Project     Named        `json:"project"`
	Tracker     Named        `json:"tracker"`
	CreatedOn   time.Time    `json:"created_on"`
	UpdatedOn   time.Time    `json:"updated_on"`
	Journals    []Journal    `json:"journals"`
	Relations   []Relation   `json:"relations"`
	Attachments []Attachment `json:"attachments"`
}

// Include selects the optional sub-resources fetched with an issue.
type Include struct {
	Journals    bool
	Relations   bool
	Attachments bool
}

// IncludeAll fetches every optional sub-resource.
func IncludeAll() Include {
	return Include{Journals: true, Relations: true, Attachments: true}
}

// ListFilters narrows a project issue listing.
type ListFilters struct {
	StatusID     string    // "open", "closed", "*" or a numeric id; empty means server default
	UpdatedSince time.Time // zero means no cutoff
}
