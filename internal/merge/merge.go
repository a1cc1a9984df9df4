// Package merge reconciles two versions of the same note field by field.
//
// Every function here is pure: no I/O, no clocks, no shared state. Merge is
// commutative and idempotent, so replicas that have seen the same set of
// writes converge regardless of delivery order.
package merge

import (
	"notesync/internal/domain"
)

type side int

const (
	sideA side = iota
	sideB
)

type decision struct {
	winner     side
	concurrent bool
	differs    bool
}

// Merge combines two versions of a note.
func Merge(a, b domain.Note) domain.Note {
	out, _ := merge(a, b)
	return out
}

func merge(a, b domain.Note) (domain.Note, map[domain.Field]decision) {
	out := domain.Note{
		ID:        maxString(a.ID, b.ID),
		OwnerID:   maxString(a.OwnerID, b.OwnerID),
		CreatedAt: earliest(a.CreatedAt, b.CreatedAt),
		UpdatedAt: max(a.UpdatedAt, b.UpdatedAt),
		Versions:  make(domain.Versions, len(domain.Fields)),
	}
	decisions := make(map[domain.Field]decision, len(domain.Fields))

	for _, f := range domain.Fields {
		var d decision
		switch {
		case f == domain.FieldDeleted && a.Deleted != b.Deleted:
			d = decideDeletion(a, b)
		case f == domain.FieldPinned:
			d = decideLatest(a, b, f)
		default:
			d = decideField(a, b, f)
		}
		d.differs = a.Value(f) != b.Value(f)
		decisions[f] = d

		winner, loser := a, b
		if d.winner == sideB {
			winner, loser = b, a
		}
		out.CopyField(f, winner)

		wv, wok := winner.Versions[f]
		lv, lok := loser.Versions[f]
		if !wok && !lok {
			continue
		}
		v := wv.Clone()
		if !wok {
			v = domain.FieldVersion{Timestamp: lv.Timestamp, Device: lv.Device}
		}
		v.Clock = wv.Clock.Merge(lv.Clock)
		out.Versions[f] = v
	}

	return out, decisions
}

// decideField applies clock dominance, then the timestamp, device and value
// tie-breaks.
func decideField(a, b domain.Note, f domain.Field) decision {
	av, aok := a.Versions[f]
	bv, bok := b.Versions[f]

	switch {
	case aok && !bok:
		return decision{winner: sideA}
	case bok && !aok:
		return decision{winner: sideB}
	}

	switch av.Clock.Compare(bv.Clock) {
	case domain.After:
		return decision{winner: sideA}
	case domain.Before:
		return decision{winner: sideB}
	case domain.Concurrent:
		return decision{winner: tieBreak(av, bv, a.Value(f), b.Value(f)), concurrent: true}
	default:
		return decision{winner: tieBreak(av, bv, a.Value(f), b.Value(f))}
	}
}

// decideLatest resolves a field purely by wall-clock recency.
func decideLatest(a, b domain.Note, f domain.Field) decision {
	av := a.Versions[f]
	bv := b.Versions[f]
	return decision{
		winner:     tieBreak(av, bv, a.Value(f), b.Value(f)),
		concurrent: av.Clock.Compare(bv.Clock) == domain.Concurrent,
	}
}

// decideDeletion runs when exactly one side is a tombstone. The deletion is
// compared against everything the other side has seen: an edit that strictly
// follows the deletion restores the note, a deletion that follows or equals
// the edit history wins, and concurrent histories fall back to recency.
func decideDeletion(a, b domain.Note) decision {
	deleted, live, deletedSide := a, b, sideA
	if b.Deleted {
		deleted, live, deletedSide = b, a, sideB
	}
	liveSide := sideB
	if deletedSide == sideB {
		liveSide = sideA
	}

	del := deleted.Versions[domain.FieldDeleted]
	edit := live.Latest()

	switch del.Clock.Compare(live.Clock()) {
	case domain.Before:
		return decision{winner: liveSide}
	case domain.After, domain.Equal:
		return decision{winner: deletedSide}
	}

	d := decision{winner: deletedSide, concurrent: true}
	if edit.Timestamp > del.Timestamp || (edit.Timestamp == del.Timestamp && edit.Device > del.Device) {
		d.winner = liveSide
	}
	return d
}

func tieBreak(av, bv domain.FieldVersion, aval, bval string) side {
	switch {
	case av.Timestamp != bv.Timestamp:
		if av.Timestamp > bv.Timestamp {
			return sideA
		}
		return sideB
	case av.Device != bv.Device:
		if av.Device > bv.Device {
			return sideA
		}
		return sideB
	case aval < bval:
		return sideB
	default:
		return sideA
	}
}

func maxString(a, b string) string {
	if a > b {
		return a
	}
	return b
}

func earliest(a, b int64) int64 {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	default:
		return min(a, b)
	}
}
