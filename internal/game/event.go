package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown      EventType = iota
	EventTypeTick                   // Tick boundary with population counts
	EventTypeAtomSpawn              // Spawner or session seeding created an atom
	EventTypeBondForm               // Dragged atom bonded
	EventTypeBondReject             // Release next to an atom it could not bond with
	EventTypeMolecule               // Stable molecule removed and scored
	EventTypeUndo                   // Most recent live bond reverted
	EventTypeReset                  // World cleared
	EventTypeSessionStart           // Game session started
	EventTypeSessionStop            // Game session stopped
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Simulation tick this occurred in
	Source    string          `json:"source"`    // Rate limiting key: "pointer", "spawner", "engine"
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeAtomSpawn:
		return "atom_spawn"
	case EventTypeBondForm:
		return "bond_form"
	case EventTypeBondReject:
		return "bond_reject"
	case EventTypeMolecule:
		return "molecule"
	case EventTypeUndo:
		return "undo"
	case EventTypeReset:
		return "reset"
	case EventTypeSessionStart:
		return "session_start"
	case EventTypeSessionStop:
		return "session_stop"
	default:
		return "unknown"
	}
}

// MarshalText writes the type by name so JSONL logs stay readable.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(text []byte) error {
	for c := EventTypeTick; c <= EventTypeSessionStop; c++ {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// Event sources used for per-source rate limiting.
const (
	SourceEngine  = "engine"
	SourcePointer = "pointer"
	SourceSpawner = "spawner"
)

// Typed payloads for different event types

// TickPayload is written once per tick while the log runs.
type TickPayload struct {
	Atoms       int   `json:"atoms"`
	Bonds       int   `json:"bonds"`
	DeltaTimeNs int64 `json:"deltaTimeNs"`
}

// AtomSpawnPayload describes a new atom.
type AtomSpawnPayload struct {
	AtomID  AtomID  `json:"atomId"`
	Element Element `json:"element"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// BondPayload describes a formed or undone bond.
type BondPayload struct {
	BondID BondID `json:"bondId"`
	A      AtomID `json:"a"`
	B      AtomID `json:"b"`
}

// RejectPayload describes a rejected release.
type RejectPayload struct {
	Released AtomID `json:"released"`
	Neighbor AtomID `json:"neighbor"`
	Reason   string `json:"reason"`
}

// MoleculePayload describes a removed molecule.
type MoleculePayload struct {
	Formula string   `json:"formula"`
	Atoms   []AtomID `json:"atoms"`
	Points  int      `json:"points"`
}

// SessionPayload describes a session boundary.
type SessionPayload struct {
	Player    string `json:"player"`
	Score     int    `json:"score"`
	Molecules int    `json:"molecules"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
