package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
	FieldColor   Field = "color"
	FieldPinned  Field = "pinned"
	FieldDeleted Field = "deleted"
)

// Fields lists every versioned note field in a stable order.
var Fields = []Field{FieldTitle, FieldContent, FieldColor, FieldPinned, FieldDeleted}

const DefaultColor = "#FFFFFF"

// Palette is the fixed set of note colours the app offers.
var Palette = []string{
	"#FFFFFF", "#FFCDD2", "#F8BBD0", "#E1BEE7", "#D1C4E9",
	"#BBDEFB", "#B2EBF2", "#C8E6C9", "#FFF9C4", "#FFCCBC",
}

// FieldVersion records who last wrote a field and what they had seen.
type FieldVersion struct {
	Clock     VectorClock `json:"clock"`
	Timestamp int64       `json:"ts"`
	Device    string      `json:"device"`
}

func (v FieldVersion) Clone() FieldVersion {
	v.Clock = v.Clock.Clone()
	return v
}

type Versions map[Field]FieldVersion

func (vs Versions) Clone() Versions {
	out := make(Versions, len(vs))
	for f, v := range vs {
		out[f] = v.Clone()
	}
	return out
}

type Note struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Color     string   `json:"color"`
	Pinned    bool     `json:"pinned"`
	Deleted   bool     `json:"deleted"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	Versions  Versions `json:"versions"`
}

func (n Note) Clone() Note {
	n.Versions = n.Versions.Clone()
	return n
}

// Clock is the merge of every field clock, i.e. everything the note has seen.
func (n Note) Clock() VectorClock {
	out := VectorClock{}
	for _, v := range n.Versions {
		out = out.Merge(v.Clock)
	}
	return out
}

// Latest returns the most recent field version by timestamp, then device id.
func (n Note) Latest() FieldVersion {
	var latest FieldVersion
	for _, f := range Fields {
		v, ok := n.Versions[f]
		if !ok {
			continue
		}
		if v.Timestamp > latest.Timestamp || (v.Timestamp == latest.Timestamp && v.Device > latest.Device) {
			latest = v
		}
	}
	return latest
}

// Value returns the field value encoded as a string for ordering and comparison.
func (n Note) Value(f Field) string {
	switch f {
	case FieldTitle:
		return n.Title
	case FieldContent:
		return n.Content
	case FieldColor:
		return n.Color
	case FieldPinned:
		return strconv.FormatBool(n.Pinned)
	case FieldDeleted:
		return strconv.FormatBool(n.Deleted)
	}
	return ""
}

// CopyField copies the value of f from src into n.
func (n *Note) CopyField(f Field, src Note) {
	switch f {
	case FieldTitle:
		n.Title = src.Title
	case FieldContent:
		n.Content = src.Content
	case FieldColor:
		n.Color = src.Color
	case FieldPinned:
		n.Pinned = src.Pinned
	case FieldDeleted:
		n.Deleted = src.Deleted
	}
}

func (n Note) Equal(o Note) bool {
	if n.ID != o.ID || n.OwnerID != o.OwnerID || n.CreatedAt != o.CreatedAt || n.UpdatedAt != o.UpdatedAt {
		return false
	}
	for _, f := range Fields {
		if n.Value(f) != o.Value(f) {
			return false
		}
		a, aok := n.Versions[f]
		b, bok := o.Versions[f]
		if aok != bok {
			return false
		}
		if a.Timestamp != b.Timestamp || a.Device != b.Device || !a.Clock.Equal(b.Clock) {
			return false
		}
	}
	return true
}

// Matches reports whether query occurs in the title or content, ignoring case.
func (n Note) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Content), q)
}

type NoteStats struct {
	Characters int `json:"characters" yaml:"characters"`
	Words      int `json:"words" yaml:"words"`
}

func (n Note) Stats() NoteStats {
	return NoteStats{
		Characters: utf8.RuneCountInString(n.Content),
		Words:      len(strings.Fields(n.Content)),
	}
}

func ValidColor(c string) bool {
	for _, p := range Palette {
		if strings.EqualFold(p, c) {
			return true
		}
	}
	return false
}
