package game

// UndoHistory lists bonds in creation order. Entries are not pruned when a
// bond disappears some other way; UndoLast skips them lazily.
type UndoHistory struct {
	entries []BondID
}

// Record appends a newly created bond.
func (u *UndoHistory) Record(id BondID) {
	u.entries = append(u.entries, id)
}

// UndoLast removes the most recent bond that still exists and returns it.
// Entries for bonds that are already gone are discarded on the way. With no
// live bond left it returns false and changes nothing else.
func (u *UndoHistory) UndoLast(s *Store) (Bond, bool) {
	for len(u.entries) > 0 {
		last := len(u.entries) - 1
		id := u.entries[last]
		u.entries = u.entries[:last]

		if b := s.Bond(id); b != nil {
			removed := *b
			s.RemoveBond(id)
			return removed, true
		}
	}
	return Bond{}, false
}

// Len returns the number of recorded entries, including stale ones.
func (u *UndoHistory) Len() int { return len(u.entries) }

// Clear forgets all entries.
func (u *UndoHistory) Clear() { u.entries = u.entries[:0] }
