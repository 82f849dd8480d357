// Package document provides the markdown document codec: parsing local issue
// files into frontmatter, content and comment block, and serializing them back.
package document

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterDelim is the line delimiting the YAML frontmatter block.
const frontmatterDelim = "---"

// Anchors are the literal marker lines wrapping the machine-managed comment
// block inside a document. A document with only one of the two present is
// treated as having no comment block.
type Anchors struct {
	Start string
	End   string
}

// DefaultAnchors returns the stock comment block markers.
func DefaultAnchors() Anchors {
	return Anchors{
		Start: "<!-- redmine:comments:start -->",
		End:   "<!-- redmine:comments:end -->",
	}
}

// Relation mirrors an issue relation in frontmatter.
type Relation struct {
	Type    string `yaml:"type"`
	IssueID int    `yaml:"issue"`
	Delay   *int   `yaml:"delay,omitempty"`
}

// Attachment mirrors an issue attachment in frontmatter.
type Attachment struct {
	ID          int    `yaml:"id"`
	Filename    string `yaml:"filename"`
	Size        int64  `yaml:"size"`
	ContentType string `yaml:"content_type,omitempty"`
	Author      string `yaml:"author,omitempty"`
	CreatedOn   string `yaml:"created_on,omitempty"`
	URL         string `yaml:"url,omitempty"`
}

// Frontmatter is the structured header of a local issue document. Known fields
// are named; anything else a user adds by hand survives in Extra and is
// re-emitted on serialization.
type Frontmatter struct {
	ID            int            `yaml:"id,omitempty"`
	Subject       string         `yaml:"subject,omitempty"`
	Status        string         `yaml:"status,omitempty"`
	Priority      string         `yaml:"priority,omitempty"`
	Author        string         `yaml:"author,omitempty"`
	Assignee      string         `yaml:"assignee,omitempty"`
	Project       string         `yaml:"project,omitempty"`
	Tracker       string         `yaml:"tracker,omitempty"`
	CreatedOn     string         `yaml:"created_on,omitempty"`
	UpdatedOn     string         `yaml:"updated_on,omitempty"`
	LastJournalID *int           `yaml:"lastJournalId,omitempty"`
	Relations     []Relation     `yaml:"relations,omitempty"`
	Attachments   []Attachment   `yaml:"attachments,omitempty"`
	Extra         map[string]any `yaml:",inline"`
}

// IsZero reports whether the frontmatter carries no data at all.
func (f Frontmatter) IsZero() bool {
	return f.ID == 0 &&
		f.Subject == "" &&
		f.Status == "" &&
		f.Priority == "" &&
		f.Author == "" &&
		f.Assignee == "" &&
		f.Project == "" &&
		f.Tracker == "" &&
		f.CreatedOn == "" &&
		f.UpdatedOn == "" &&
		f.LastJournalID == nil &&
		len(f.Relations) == 0 &&
		len(f.Attachments) == 0 &&
		len(f.Extra) == 0
}

// Document is the parsed form of a local issue file.
type Document struct {
	Frontmatter Frontmatter
	Content     string
	Comments    string
	HasComments bool
}

// Parse decodes raw file bytes into a Document. Empty or whitespace-only
// input yields an empty document and no error. The comment block is extracted
// only when both anchors are present and the start anchor precedes the end
// anchor; otherwise the body is returned unmodified as Content.
func Parse(raw []byte, anchors Anchors) (Document, error) {
	var doc Document

	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	body, err := doc.extractFrontmatter(text)
	if err != nil {
		return Document{}, err
	}

	doc.extractComments(body, anchors)
	return doc, nil
}

// Load reads and parses the document at path. A nonexistent file is not an
// error: it yields the same empty document as empty content, so callers can
// treat "no file yet" and "create" uniformly.
func Load(path string, anchors Anchors) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(raw, anchors)
}

// extractFrontmatter decodes a leading frontmatter block, if any, and returns
// the remaining body.
func (d *Document) extractFrontmatter(text string) (string, error) {
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return text, nil
	}

	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	var block, body string
	switch {
	case end >= 0:
		block = rest[:end+1]
		body = rest[end+len(frontmatterDelim)+2:]
	case strings.HasSuffix(rest, "\n"+frontmatterDelim):
		// Closing delimiter on the last line with no trailing newline.
		block = rest[:len(rest)-len(frontmatterDelim)]
		body = ""
	default:
		// No closing delimiter: treat the whole input as body.
		return text, nil
	}

	if err := yaml.Unmarshal([]byte(block), &d.Frontmatter); err != nil {
		return "", fmt.Errorf("failed to decode frontmatter: %w", err)
	}
	if len(d.Frontmatter.Extra) == 0 {
		d.Frontmatter.Extra = nil
	}
	return body, nil
}

// extractComments splits the comment block out of the body. Malformed anchor
// arrangements (missing anchor, start at or after end) leave the body intact.
func (d *Document) extractComments(body string, anchors Anchors) {
	start := strings.Index(body, anchors.Start)
	end := strings.Index(body, anchors.End)
	if start < 0 || end < 0 || start >= end {
		d.Content = body
		return
	}

	d.Comments = strings.TrimSpace(body[start+len(anchors.Start) : end])
	d.HasComments = true

	before := strings.TrimRight(body[:start], "\n")
	after := strings.TrimLeft(body[end+len(anchors.End):], "\n")
	d.Content = before
	if after != "" {
		// Hand-written text after the end anchor survives the round trip.
		d.Content = before + "\n" + after
	}
}

// Serialize encodes the document back to bytes: frontmatter block first when
// non-empty, then the content verbatim, then the anchored comment block when
// present and non-empty. For documents produced by the sync engine,
// Parse(Serialize(d)) == d.
func (d Document) Serialize(anchors Anchors) ([]byte, error) {
	var buf bytes.Buffer

	if !d.Frontmatter.IsZero() {
		encoded, err := yaml.Marshal(d.Frontmatter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
		}
		buf.WriteString(frontmatterDelim + "\n")
		buf.Write(encoded)
		buf.WriteString(frontmatterDelim + "\n")
	}

	buf.WriteString(d.Content)

	if d.HasComments && d.Comments != "" {
		buf.WriteString("\n\n")
		buf.WriteString(anchors.Start)
		buf.WriteString("\n\n")
		buf.WriteString(d.Comments)
		buf.WriteString("\n\n")
		buf.WriteString(anchors.End)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}
