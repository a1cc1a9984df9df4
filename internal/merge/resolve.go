package merge

import "notesync/internal/domain"

// Result is the outcome of reconciling the local copy of a note with a
// remote one.
type Result struct {
	Note domain.Note
	// Overridden lists fields whose local value was replaced by the remote value.
	Overridden []domain.Field
	// Reasserted lists fields where the local value won a concurrent conflict.
	// Their clocks were bumped for the resolving device so the resolution
	// dominates both inputs once it is propagated.
	Reasserted []domain.Field
	// Changed is false when the merged note is identical to local.
	Changed bool
}

// Resolve merges remote into local on behalf of the resolver device.
func Resolve(local, remote domain.Note, resolver string) Result {
	out, decisions := merge(local, remote)

	var res Result
	for _, f := range domain.Fields {
		d := decisions[f]
		if !d.differs {
			continue
		}
		if d.winner == sideB {
			res.Overridden = append(res.Overridden, f)
			continue
		}
		if d.concurrent {
			v := out.Versions[f]
			v.Clock = v.Clock.Increment(resolver)
			out.Versions[f] = v
			res.Reasserted = append(res.Reasserted, f)
		}
	}

	res.Note = out
	res.Changed = !out.Equal(local)
	return res
}

// FromMutation returns the partial note state written by m: only the patched
// fields carry values and versions.
func FromMutation(m domain.Mutation) domain.Note {
	n := domain.Note{
		ID:        m.NoteID,
		OwnerID:   m.OwnerID,
		CreatedAt: m.CreatedAt,
		Versions:  make(domain.Versions),
	}
	m.Patch.ApplyTo(&n)
	for _, f := range m.Patch.Fields() {
		v, ok := m.Versions[f]
		if !ok {
			continue
		}
		n.Versions[f] = v.Clone()
		n.UpdatedAt = max(n.UpdatedAt, v.Timestamp)
	}
	return n
}
