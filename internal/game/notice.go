package game

import "time"

// NoticeKind classifies what the simulation tells the outside world.
type NoticeKind uint8

const (
	NoticeScore NoticeKind = iota + 1
	NoticeMoleculeFormed
	NoticeBondRejected
	NoticeBondFormed
	NoticeBondUndone
	NoticeAtomSpawned
)

// String returns the wire name used by the WebSocket layer.
func (k NoticeKind) String() string {
	switch k {
	case NoticeScore:
		return "score"
	case NoticeMoleculeFormed:
		return "molecule:formed"
	case NoticeBondRejected:
		return "bond:rejected"
	case NoticeBondFormed:
		return "bond:formed"
	case NoticeBondUndone:
		return "bond:undone"
	case NoticeAtomSpawned:
		return "atom:spawned"
	default:
		return "unknown"
	}
}

// Notice is one outbound event. Notices raised during a step are delivered
// in order after the engine lock is released.
type Notice struct {
	Kind     NoticeKind `json:"-"`
	Tick     uint64     `json:"tick"`
	Points   int        `json:"points,omitempty"`
	Molecule *Molecule  `json:"molecule,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	BondID   BondID     `json:"bondId,omitempty"`
	Atoms    []AtomID   `json:"atoms,omitempty"`
	Element  Element    `json:"element,omitempty"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
}

// TickStats summarizes one simulation step.
type TickStats struct {
	Tick     uint64
	Duration time.Duration
	Atoms    int
	Bonds    int
}

// Callbacks receive engine output. They run on the goroutine that caused the
// event (the tick loop or a pointer handler) and must not block or call back
// into mutating engine methods.
type Callbacks struct {
	OnScore          func(points int)
	OnMoleculeFormed func(m Molecule)
	OnError          func(reason string)
	OnNotice         func(n Notice) // every notice, including the three above
	OnTick           func(stats TickStats)
}

func (cb Callbacks) dispatch(notices []Notice) {
	for i := range notices {
		n := notices[i]
		if cb.OnNotice != nil {
			cb.OnNotice(n)
		}
		switch n.Kind {
		case NoticeScore:
			if cb.OnScore != nil {
				cb.OnScore(n.Points)
			}
		case NoticeMoleculeFormed:
			if cb.OnMoleculeFormed != nil && n.Molecule != nil {
				cb.OnMoleculeFormed(*n.Molecule)
			}
		case NoticeBondRejected:
			if cb.OnError != nil {
				cb.OnError(n.Reason)
			}
		}
	}
}
