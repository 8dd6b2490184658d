// Package block renders workspace content blocks to plain text.
package block

import (
	"strconv"
	"strings"
)

// Kind tags the content of a workspace block.
type Kind string

// Block kinds.
const (
	Paragraph    Kind = "paragraph"
	Heading1     Kind = "heading_1"
	Heading2     Kind = "heading_2"
	Heading3     Kind = "heading_3"
	BulletedItem Kind = "bulleted_list_item"
	NumberedItem Kind = "numbered_list_item"
	ToDo         Kind = "to_do"
	Divider      Kind = "divider"
	Quote        Kind = "quote"
	Callout      Kind = "callout"
	Code         Kind = "code"
	Toggle       Kind = "toggle"
	ChildPage    Kind = "child_page"
	Unsupported  Kind = "unsupported"
)

// Block is one workspace content block. Checked applies to to-dos,
// Language to code, Icon to callouts.
type Block struct {
	Kind     Kind
	Text     string
	Checked  bool
	Language string
	Icon     string
}

// Render returns the plain-text form of one block. ordinal is the position
// of a numbered item within its run and is ignored for other kinds.
func Render(b Block, ordinal int) string {
	switch b.Kind {
	case Paragraph:
		return b.Text
	case Heading1:
		return "# " + b.Text
	case Heading2:
		return "## " + b.Text
	case Heading3:
		return "### " + b.Text
	case BulletedItem:
		return "- " + b.Text
	case NumberedItem:
		return strconv.Itoa(ordinal) + ". " + b.Text
	case ToDo:
		if b.Checked {
			return "[x] " + b.Text
		}
		return "[ ] " + b.Text
	case Divider:
		return "---"
	case Quote:
		return "> " + b.Text
	case Callout:
		if b.Icon != "" {
			return b.Icon + " " + b.Text
		}
		return b.Text
	case Code:
		return "```" + b.Language + "\n" + b.Text + "\n```"
	case Toggle:
		return "> " + b.Text
	case ChildPage:
		return "[Page: " + b.Text + "]"
	case Unsupported:
		return ""
	}
	return ""
}

// RenderAll renders blocks one per line, skipping blocks with no text form.
// Numbered items are counted per consecutive run.
func RenderAll(blocks []Block) string {
	lines := make([]string, 0, len(blocks))
	ordinal := 0
	for _, b := range blocks {
		if b.Kind == NumberedItem {
			ordinal++
		} else {
			ordinal = 0
		}
		if s := Render(b, ordinal); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}
