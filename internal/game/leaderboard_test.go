package game

import (
	"fmt"
	"testing"
)

// TestLeaderboardKeepsBest verifies only improvements move a player
func TestLeaderboardKeepsBest(t *testing.T) {
	lb := NewLeaderboard(10)
	lb.Record(SessionResult{Player: "ada", Score: 300})
	lb.Record(SessionResult{Player: "bob", Score: 800})
	if lb.Record(SessionResult{Player: "ada", Score: 100}) {
		t.Error("a worse score should not replace the best")
	}
	if !lb.Record(SessionResult{Player: "ada", Score: 900}) {
		t.Error("a better score should be recorded")
	}
	lb.Record(SessionResult{Score: 5000}) // anonymous, ignored

	top := lb.Top(10)
	if len(top) != 2 || top[0].Player != "ada" || top[0].Score != 900 || top[1].Rank != 2 {
		t.Fatalf("unexpected leaderboard %+v", top)
	}
	if lb.Rank("bob") != 2 || lb.Rank("eve") != 0 {
		t.Errorf("unexpected ranks bob=%d eve=%d", lb.Rank("bob"), lb.Rank("eve"))
	}
}

// TestStopSessionRecordsLeaderboard verifies finished sessions are ranked
func TestStopSessionRecordsLeaderboard(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartSession("ada")
	e.StopSession()

	if e.Leaderboard().Len() != 1 || e.Leaderboard().Rank("ada") != 1 {
		t.Errorf("Expected ada ranked first, got %+v", e.Leaderboard().Top(5))
	}
}

// TestLeaderboardTiesAndCapacity verifies earlier finishes win ties and the
// board never grows past its capacity
func TestLeaderboardTiesAndCapacity(t *testing.T) {
	lb := NewLeaderboard(50)
	lb.Record(SessionResult{Player: "zed", Score: 500})
	lb.Record(SessionResult{Player: "amy", Score: 500})
	if lb.Rank("zed") != 1 || lb.Rank("amy") != 2 {
		t.Fatalf("Expected the earlier finish first, got zed=%d amy=%d", lb.Rank("zed"), lb.Rank("amy"))
	}

	for i := 0; i < 5000; i++ {
		lb.Record(SessionResult{Player: fmt.Sprintf("p%04d", i), Score: i % 1000})
	}
	if lb.Len() != 50 {
		t.Errorf("Expected %d players, got %d", 50, lb.Len())
	}
	if lb.Rank("zed") != 0 || lb.Rank("amy") != 0 {
		t.Errorf("Expected 500-point entries to fall off, got zed=%d amy=%d", lb.Rank("zed"), lb.Rank("amy"))
	}
	top := lb.Top(1)
	if len(top) != 1 || top[0].Score != 999 || top[0].Player != "p0999" {
		t.Errorf("Expected the first 999 on top, got %+v", top)
	}
	if lb.Record(SessionResult{Player: "late", Score: 1}) {
		t.Error("a score below the cut should not make the board")
	}
	if lb.Len() != 50 {
		t.Errorf("board grew to %d", lb.Len())
	}
}
