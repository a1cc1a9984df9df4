package domain

// Patch carries the fields a single edit changes. Nil means untouched.
type Patch struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,notblank,max=100"`
	Content *string `json:"content,omitempty" validate:"omitempty,notblank,max=20000"`
	Color   *string `json:"color,omitempty" validate:"omitempty,palette"`
	Pinned  *bool   `json:"pinned,omitempty"`
	Deleted *bool   `json:"deleted,omitempty"`
}

func (p Patch) Fields() []Field {
	var out []Field
	if p.Title != nil {
		out = append(out, FieldTitle)
	}
	if p.Content != nil {
		out = append(out, FieldContent)
	}
	if p.Color != nil {
		out = append(out, FieldColor)
	}
	if p.Pinned != nil {
		out = append(out, FieldPinned)
	}
	if p.Deleted != nil {
		out = append(out, FieldDeleted)
	}
	return out
}

func (p Patch) Empty() bool {
	return len(p.Fields()) == 0
}

func (p Patch) IsDeletion() bool {
	return p.Deleted != nil && *p.Deleted
}

func (p Patch) ApplyTo(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.Pinned != nil {
		n.Pinned = *p.Pinned
	}
	if p.Deleted != nil {
		n.Deleted = *p.Deleted
	}
}

// PatchFrom builds a patch holding the current values of the given fields.
func PatchFrom(n Note, fields []Field) Patch {
	var p Patch
	for _, f := range fields {
		switch f {
		case FieldTitle:
			v := n.Title
			p.Title = &v
		case FieldContent:
			v := n.Content
			p.Content = &v
		case FieldColor:
			v := n.Color
			p.Color = &v
		case FieldPinned:
			v := n.Pinned
			p.Pinned = &v
		case FieldDeleted:
			v := n.Deleted
			p.Deleted = &v
		}
	}
	return p
}

// Mutation is one local edit queued for the remote service.
type Mutation struct {
	DeviceID     string   `json:"device_id"`
	Seq          uint64   `json:"seq"`
	NoteID       string   `json:"note_id"`
	OwnerID      string   `json:"owner_id"`
	Patch        Patch    `json:"patch"`
	Versions     Versions `json:"versions"`
	CreatedAt    int64    `json:"created_at"`
	Applied      bool     `json:"-"`
	Acknowledged bool     `json:"-"`
}

// MutationInput is what the presentation layer submits. An empty NoteID
// creates a new note.
type MutationInput struct {
	NoteID string
	Patch  Patch
}

// SyncCursor is the opaque position of the last pulled remote change.
type SyncCursor string

// Session identifies the signed-in account on this device.
type Session struct {
	UserID       string `json:"user_id" yaml:"user_id"`
	DeviceID     string `json:"device_id" yaml:"device_id"`
	AccessToken  string `json:"access_token" yaml:"-"`
	RefreshToken string `json:"refresh_token,omitempty" yaml:"-"`
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.DeviceID != ""
}
