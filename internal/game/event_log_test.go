package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestEventLogNotRunning verifies events are refused before Start
func TestEventLogNotRunning(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeTick, 1, "", nil) {
		t.Error("Emit should fail when the log is not running")
	}
	if el.GetTotalCount() != 0 {
		t.Error("nothing should be counted")
	}
}

// TestEventLogSourceRateLimit verifies a noisy source is throttled
func TestEventLogSourceRateLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.StartWriter(nil); err != nil {
		t.Fatal(err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 1000; i++ {
		if el.EmitSimple(EventTypeBondForm, uint64(i), SourcePointer, BondPayload{}) {
			accepted++
		}
	}
	if accepted >= 1000 || el.GetDroppedCount() == 0 {
		t.Errorf("Expected throttling, accepted %d dropped %d", accepted, el.GetDroppedCount())
	}

	// Another source has its own budget.
	if !el.EmitSimple(EventTypeAtomSpawn, 1, SourceSpawner, AtomSpawnPayload{Element: Carbon}) {
		t.Error("a fresh source should not be throttled")
	}
}

// TestEventLogFileRoundTrip verifies JSONL output with sequence numbers
func TestEventLogFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		el.EmitSimple(EventTypeMolecule, uint64(i), SourceEngine,
			MoleculePayload{Formula: "H2O", Points: 300})
	}
	el.Stop()
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var seqs []uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if ev.Type != EventTypeMolecule {
			t.Errorf("Expected molecule event, got %s", ev.Type)
		}
		var p MoleculePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.Formula != "H2O" {
			t.Errorf("bad payload %s", ev.Payload)
		}
		seqs = append(seqs, ev.Sequence)
	}
	if len(seqs) != 5 {
		t.Fatalf("Expected 5 lines, got %d", len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Errorf("sequence gap: %v", seqs)
		}
	}
}

// TestEventLogStartBadPath verifies open errors are returned
func TestEventLogStartBadPath(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(filepath.Join(t.TempDir(), "missing", "dir", "x.jsonl")); err == nil {
		t.Error("Expected an error for an unwritable path")
	}
}
