package game

import "bond-arena/internal/game/spatial"

// Leaderboard ranks players by their best session score. Ties go to whoever
// reached the score first. Only the best capacity players are kept.
//
// Operations:
//   - Record: O(log n)
//   - Rank: O(log n)
//   - Top: O(log n + k)
type Leaderboard struct {
	skipList *spatial.SkipList
	capacity int
}

// DefaultLeaderboardSize is used when NewLeaderboard gets a non-positive capacity.
const DefaultLeaderboardSize = 100

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}

// NewLeaderboard creates an empty leaderboard holding at most capacity players.
func NewLeaderboard(capacity int) *Leaderboard {
	if capacity <= 0 {
		capacity = DefaultLeaderboardSize
	}
	return &Leaderboard{skipList: spatial.NewSkipList(), capacity: capacity}
}

// Record keeps the result if it beats the player's previous best. The
// lowest entries past capacity are dropped. It reports whether the player's
// best changed and made the board.
func (lb *Leaderboard) Record(r SessionResult) bool {
	if r.Player == "" {
		return false
	}
	if best, ok := lb.skipList.GetScore(r.Player); ok && float64(r.Score) <= best {
		return false
	}
	lb.skipList.Insert(r.Player, float64(r.Score))
	for _, e := range lb.skipList.TrimTo(lb.capacity) {
		if e.Key == r.Player {
			return false
		}
	}
	return true
}

// Rank returns the player's 1-based rank, or 0 if they never finished a session.
func (lb *Leaderboard) Rank(player string) int {
	return lb.skipList.GetRank(player)
}

// Top returns the best n players.
func (lb *Leaderboard) Top(n int) []LeaderboardEntry {
	entries := lb.skipList.GetRange(1, n)
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{Player: e.Key, Score: int(e.Score), Rank: i + 1}
	}
	return out
}

// Capacity returns the maximum number of ranked players.
func (lb *Leaderboard) Capacity() int {
	return lb.capacity
}

// Len returns the number of ranked players.
func (lb *Leaderboard) Len() int {
	return lb.skipList.Length()
}
