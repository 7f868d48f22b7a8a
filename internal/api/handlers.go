package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"bond-arena/internal/game"

	"github.com/go-chi/chi/v5"
)

// MaxPlayerNameLength bounds the player name accepted by /api/session/start.
const MaxPlayerNameLength = 32

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetState())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.GetSnapshot()
	stats := map[string]any{
		"engine":        h.engine.Stats(),
		"sequence":      snapshot.Sequence,
		"sessionActive": snapshot.SessionActive,
		"rateLimit":     h.limiter.Stats(),
	}
	if h.conns != nil {
		stats["websocket"] = h.conns.Stats()
	}
	if h.eventLog != nil {
		stats["eventLog"] = h.eventLog.GetStats()
	}
	if h.identifier != nil {
		stats["classifier"] = h.identifier.Stats()
	}
	if h.molecules != nil {
		stats["recentMolecules"] = h.molecules.Len()
	}
	writeJSON(w, stats)
}

type elementInfo struct {
	ID game.Element `json:"id"`
	game.ElementDef
}

func (h *routerHandlers) handleGetElements(w http.ResponseWriter, r *http.Request) {
	elements := game.Elements()
	out := make([]elementInfo, len(elements))
	for i, e := range elements {
		out[i] = elementInfo{ID: e, ElementDef: e.Def()}
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetMolecules(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 100)
	if h.molecules == nil {
		writeJSON(w, []any{})
		return
	}
	writeJSON(w, h.molecules.Recent(limit))
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 10, 100)
	writeJSON(w, h.engine.Leaderboard().Top(limit))
}

func (h *routerHandlers) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Player string `json:"player"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	player := strings.TrimSpace(req.Player)
	if player == "" {
		writeError(w, "Player name required", http.StatusBadRequest)
		return
	}
	if len(player) > MaxPlayerNameLength {
		writeError(w, "Player name too long", http.StatusBadRequest)
		return
	}

	h.engine.StartSession(player)
	writeJSON(w, map[string]any{"success": true, "player": player})
}

func (h *routerHandlers) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	result := h.engine.StopSession()
	rank := 0
	if result.Player != "" {
		rank = h.engine.Leaderboard().Rank(result.Player)
	}
	writeJSON(w, map[string]any{"result": result, "rank": rank})
}

func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	writeJSON(w, map[string]bool{"success": true})
}

// pointerRequest is the body of pointer down and move requests.
type pointerRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func decodePointer(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.X == nil || req.Y == nil {
		writeError(w, "Expected {\"x\": number, \"y\": number}", http.StatusBadRequest)
		return 0, 0, false
	}
	return *req.X, *req.Y, true
}

func (h *routerHandlers) handlePointerDown(w http.ResponseWriter, r *http.Request) {
	x, y, ok := decodePointer(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]bool{"grabbed": h.engine.PointerDown(x, y)})
}

func (h *routerHandlers) handlePointerMove(w http.ResponseWriter, r *http.Request) {
	x, y, ok := decodePointer(w, r)
	if !ok {
		return
	}
	h.engine.PointerMove(x, y)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	h.engine.PointerUp()
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleUndo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"undone": h.engine.Undo()})
}

func (h *routerHandlers) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if h.guide == nil {
		writeError(w, "Briefings disabled", http.StatusServiceUnavailable)
		return
	}

	mission := 1
	if raw := r.URL.Query().Get("mission"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "mission must be a positive integer", http.StatusBadRequest)
			return
		}
		mission = n
	}
	writeJSON(w, h.guide.Briefing(r.Context(), mission))
}

func (h *routerHandlers) handleHint(w http.ResponseWriter, r *http.Request) {
	if h.guide == nil {
		writeError(w, "Hints disabled", http.StatusServiceUnavailable)
		return
	}

	hint, ok := h.guide.Hint(h.engine.GetSnapshot())
	if !ok {
		writeError(w, "No bond available", http.StatusNotFound)
		return
	}
	writeJSON(w, hint)
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, "Rendering disabled", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.frames.EncodePNG(&buf, h.engine.GetSnapshot()); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleSound(w http.ResponseWriter, r *http.Request) {
	if h.sounds == nil {
		writeError(w, "Sound disabled", http.StatusServiceUnavailable)
		return
	}

	cue, ok := strings.CutSuffix(chi.URLParam(r, "cue"), ".wav")
	if !ok || !slices.Contains(h.sounds.Cues(), cue) {
		writeError(w, "Unknown cue", http.StatusNotFound)
		return
	}

	data, err := h.sounds.WAV(cue)
	if err != nil {
		log.Printf("❌ Sound cue %s failed: %v", cue, err)
		writeError(w, "Synthesis failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

// queryLimit reads ?limit=, clamped to [1, upper].
func queryLimit(r *http.Request, def, upper int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > upper {
		return upper
	}
	return limit
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
