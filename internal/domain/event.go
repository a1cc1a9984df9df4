package domain

type EventKind string

const (
	EventPut      EventKind = "put"
	EventDelete   EventKind = "delete"
	EventOverride EventKind = "override"
)

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// ChangeEvent is delivered to store subscribers after a durable write.
type ChangeEvent struct {
	Kind   EventKind `json:"kind"`
	Origin Origin    `json:"origin"`
	Note   Note      `json:"note"`
	// Fields lists locally staged fields that a merge replaced. Only set for
	// EventOverride.
	Fields []Field `json:"fields,omitempty"`
}
