package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bond-arena/internal/api"
	"bond-arena/internal/classify"
	"bond-arena/internal/config"
	"bond-arena/internal/game"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	mu sync.Mutex

	player      string
	active      bool
	score       int
	pointer     []string // recorded pointer calls
	undoDepth   int
	resets      int
	leaderboard *game.Leaderboard
}

func NewMockEngine() *MockEngine {
	return &MockEngine{leaderboard: game.NewLeaderboard(10)}
}

func (m *MockEngine) snapshot() game.GameSnapshot {
	return game.GameSnapshot{
		Atoms: []game.AtomSnapshot{
			{ID: 1, Element: game.Hydrogen, X: 100, Y: 100, Scale: 1, Valency: 1},
			{ID: 2, Element: game.Oxygen, X: 150, Y: 100, Scale: 1, Valency: 2},
		},
		Score:         m.score,
		SessionActive: m.active,
		Player:        m.player,
		UndoDepth:     m.undoDepth,
		Width:         1280,
		Height:        720,
	}
}

func (m *MockEngine) GetState() game.GameSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *MockEngine) GetSnapshot() *game.GameSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	return &snap
}

func (m *MockEngine) Stats() game.EngineStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.EngineStats{Atoms: 2, Score: m.score, UndoDepth: m.undoDepth}
}

func (m *MockEngine) PointerDown(x, y float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointer = append(m.pointer, "down")
	// Only the hydrogen at (100,100) can be grabbed
	return (x-100)*(x-100)+(y-100)*(y-100) <= 14*14
}

func (m *MockEngine) PointerMove(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointer = append(m.pointer, "move")
}

func (m *MockEngine) PointerUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointer = append(m.pointer, "up")
}

func (m *MockEngine) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.undoDepth == 0 {
		return false
	}
	m.undoDepth--
	return true
}

func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *MockEngine) StartSession(player string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.player, m.active, m.score = player, true, 0
}

func (m *MockEngine) StopSession() game.SessionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return game.SessionResult{}
	}
	result := game.SessionResult{Player: m.player, Score: m.score}
	m.leaderboard.Record(result)
	m.player, m.active = "", false
	return result
}

func (m *MockEngine) Leaderboard() *game.Leaderboard {
	return m.leaderboard
}

func (m *MockEngine) pointerCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.pointer...)
}

// MockIdentifier implements api.Identifier with a scripted queue
type MockIdentifier struct {
	mu        sync.Mutex
	submitted []game.Molecule
	ready     []classify.Record
}

func (m *MockIdentifier) Submit(mol game.Molecule, tick uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, mol)
	m.ready = append(m.ready, classify.Record{Formula: mol.Formula, Name: "Mock " + mol.Formula, Tick: tick, Source: "mock"})
	return true
}

func (m *MockIdentifier) Drain(maxItems int) []classify.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(maxItems, len(m.ready))
	out := m.ready[:n:n]
	m.ready = m.ready[n:]
	return out
}

func (m *MockIdentifier) Stats() classify.DispatcherStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return classify.DispatcherStats{Submitted: uint64(len(m.submitted))}
}

// MockCues implements api.CueSource
type MockCues struct{ fail bool }

func (m *MockCues) Cues() []string { return []string{"bond", "reject"} }

func (m *MockCues) CueFor(kind game.NoticeKind) (string, bool) {
	if kind == game.NoticeBondFormed {
		return "bond", true
	}
	return "", false
}

func (m *MockCues) WAV(cue string) ([]byte, error) {
	if m.fail {
		return nil, errors.New("synth failed")
	}
	return []byte("RIFF" + cue), nil
}

// MockFrames implements api.FrameEncoder
type MockFrames struct{}

func (MockFrames) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	_, err := w.Write([]byte("\x89PNG"))
	return err
}

func newTestRouter(engine api.EngineInterface) *httptest.Server {
	return httptest.NewServer(api.NewRouter(api.RouterConfig{
		Engine:         engine,
		DisableLogging: true,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000, // High limit for tests
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	}))
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

// ============================================================================
// API Endpoint Tests
// ============================================================================

// TestAPIGetState tests the world state endpoint
func TestAPIGetState(t *testing.T) {
	ts := newTestRouter(NewMockEngine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	state := decode[game.GameSnapshot](t, resp)
	if len(state.Atoms) != 2 || state.Width != 1280 {
		t.Errorf("unexpected state %+v", state)
	}
}

// TestAPIGetElements tests the element table endpoint
func TestAPIGetElements(t *testing.T) {
	ts := newTestRouter(NewMockEngine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/elements")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	elements := decode[[]map[string]any](t, resp)

	if len(elements) != len(game.Elements()) {
		t.Fatalf("Expected %d elements, got %d", len(game.Elements()), len(elements))
	}
	if elements[0]["symbol"] != "H" || elements[0]["valency"] != float64(1) {
		t.Errorf("unexpected first element %v", elements[0])
	}
}

// TestAPISessionStartValidation tests validation on session start
func TestAPISessionStartValidation(t *testing.T) {
	ts := newTestRouter(NewMockEngine())
	defer ts.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"player": "ada"}`, http.StatusOK},
		{"empty name", `{"player": "  "}`, http.StatusBadRequest},
		{"missing name", `{}`, http.StatusBadRequest},
		{"too long", `{"player": "` + strings.Repeat("x", api.MaxPlayerNameLength+1) + `"}`, http.StatusBadRequest},
		{"invalid json", `{invalid}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/session/start", tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

// TestAPISessionLifecycle tests start, stop and the leaderboard
func TestAPISessionLifecycle(t *testing.T) {
	engine := NewMockEngine()
	ts := newTestRouter(engine)
	defer ts.Close()

	postJSON(t, ts.URL+"/api/session/start", `{"player": " ada "}`).Body.Close()
	if st := engine.GetState(); !st.SessionActive || st.Player != "ada" {
		t.Fatalf("session not started with trimmed name: %+v", st)
	}

	engine.mu.Lock()
	engine.score = 600
	engine.mu.Unlock()

	stop := decode[struct {
		Result game.SessionResult `json:"result"`
		Rank   int                `json:"rank"`
	}](t, postJSON(t, ts.URL+"/api/session/stop", ``))
	if stop.Result.Player != "ada" || stop.Result.Score != 600 || stop.Rank != 1 {
		t.Errorf("unexpected stop response %+v", stop)
	}

	resp, err := http.Get(ts.URL + "/api/leaderboard?limit=5")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	board := decode[[]game.LeaderboardEntry](t, resp)
	if len(board) != 1 || board[0].Player != "ada" || board[0].Score != 600 {
		t.Errorf("unexpected leaderboard %+v", board)
	}
}

// TestAPIPointer tests the pointer endpoints
func TestAPIPointer(t *testing.T) {
	engine := NewMockEngine()
	ts := newTestRouter(engine)
	defer ts.Close()

	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		wantGrabbed *bool
	}{
		{"grab atom", "/api/pointer/down", `{"x": 102, "y": 99}`, http.StatusOK, ptr(true)},
		{"grab empty space", "/api/pointer/down", `{"x": 600, "y": 600}`, http.StatusOK, ptr(false)},
		{"missing y", "/api/pointer/down", `{"x": 1}`, http.StatusBadRequest, nil},
		{"move", "/api/pointer/move", `{"x": 110, "y": 100}`, http.StatusNoContent, nil},
		{"bad move", "/api/pointer/move", `nope`, http.StatusBadRequest, nil},
		{"up", "/api/pointer/up", ``, http.StatusNoContent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantGrabbed == nil {
				resp.Body.Close()
				return
			}
			got := decode[map[string]bool](t, resp)
			if got["grabbed"] != *tt.wantGrabbed {
				t.Errorf("Expected grabbed=%v, got %v", *tt.wantGrabbed, got)
			}
		})
	}

	want := []string{"down", "down", "move", "up"}
	if got := engine.pointerCalls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected calls %v, got %v", want, got)
	}
}

func ptr[T any](v T) *T { return &v }

// TestAPIUndoAndReset tests the undo and reset endpoints
func TestAPIUndoAndReset(t *testing.T) {
	engine := NewMockEngine()
	engine.undoDepth = 1
	ts := newTestRouter(engine)
	defer ts.Close()

	if got := decode[map[string]bool](t, postJSON(t, ts.URL+"/api/undo", ``)); !got["undone"] {
		t.Error("first undo should succeed")
	}
	if got := decode[map[string]bool](t, postJSON(t, ts.URL+"/api/undo", ``)); got["undone"] {
		t.Error("undo on empty history should report false")
	}

	postJSON(t, ts.URL+"/api/reset", ``).Body.Close()
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.resets != 1 {
		t.Errorf("Expected 1 reset, got %d", engine.resets)
	}
}

// TestAPIPresentationRoutes tests frame and sound routes with and without backends
func TestAPIPresentationRoutes(t *testing.T) {
	disabled := newTestRouter(NewMockEngine())
	defer disabled.Close()

	for _, path := range []string{"/api/frame.png", "/api/sfx/bond.wav"} {
		resp, err := http.Get(disabled.URL + path)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, resp.StatusCode)
		}
	}

	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Engine:         NewMockEngine(),
		Frames:         MockFrames{},
		Sounds:         &MockCues{},
		DisableLogging: true,
	}))
	defer ts.Close()

	tests := []struct {
		path        string
		wantStatus  int
		contentType string
	}{
		{"/api/frame.png", http.StatusOK, "image/png"},
		{"/api/sfx/bond.wav", http.StatusOK, "audio/wav"},
		{"/api/sfx/reject.wav", http.StatusOK, "audio/wav"},
		{"/api/sfx/bond.mp3", http.StatusNotFound, "application/json"},
		{"/api/sfx/explosion.wav", http.StatusNotFound, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Expected content type %s, got %s", tt.contentType, ct)
			}
		})
	}
}

// TestAPIBriefingAndHint tests mission briefings and hints over HTTP
func TestAPIBriefingAndHint(t *testing.T) {
	disabled := httptest.NewServer(api.NewRouter(api.RouterConfig{Engine: NewMockEngine(), DisableLogging: true}))
	defer disabled.Close()
	for _, path := range []string{"/api/briefing", "/api/hint"} {
		resp, err := http.Get(disabled.URL + path)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, resp.StatusCode)
		}
	}

	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Engine:         NewMockEngine(),
		Guide:          classify.NewGuide(config.DefaultClassifier()),
		DisableLogging: true,
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/briefing?mission=2")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var brief classify.Briefing
	json.NewDecoder(resp.Body).Decode(&brief)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || brief.Mission != 2 || brief.Target == "" || brief.Source != "fallback" {
		t.Errorf("unexpected briefing %d %+v", resp.StatusCode, brief)
	}

	for _, q := range []string{"0", "two"} {
		resp, err := http.Get(ts.URL + "/api/briefing?mission=" + q)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("mission=%s: expected 400, got %d", q, resp.StatusCode)
		}
	}

	resp, err = http.Get(ts.URL + "/api/hint")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var hint classify.Hint
	json.NewDecoder(resp.Body).Decode(&hint)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || hint.Atoms != [2]game.AtomID{1, 2} {
		t.Errorf("unexpected hint %d %+v", resp.StatusCode, hint)
	}
	if !strings.Contains(hint.Text, "Hydrogen onto the Oxygen") {
		t.Errorf("unexpected hint text %q", hint.Text)
	}
}

// TestAPIRateLimit tests that the per-IP limiter rejects bursts
func TestAPIRateLimit(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Engine:         NewMockEngine(),
		DisableLogging: true,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             3,
			CleanupInterval:   time.Hour,
		},
	}))
	defer ts.Close()

	limited := 0
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/stats")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited < 6 {
		t.Errorf("Expected most requests past the burst to be limited, got %d", limited)
	}
}

// TestIsAllowedOrigin tests the origin allowlist
func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"http://localhost", true},
		{"", false},
		{"http://localhost.evil.com", false},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		if got := api.IsAllowedOrigin(tt.origin); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

// TestMoleculeFeed tests ring ordering and overwrite
func TestMoleculeFeed(t *testing.T) {
	feed := api.NewMoleculeFeed(3)
	for _, f := range []string{"H2", "H2O", "CH4", "H3N"} {
		feed.Add(classify.Record{Formula: f})
	}

	if feed.Len() != 3 {
		t.Fatalf("Expected 3 records, got %d", feed.Len())
	}
	recent := feed.Recent(0)
	got := []string{recent[0].Formula, recent[1].Formula, recent[2].Formula}
	if strings.Join(got, ",") != "H3N,CH4,H2O" {
		t.Errorf("Expected newest first without H2, got %v", got)
	}
	if len(feed.Recent(2)) != 2 {
		t.Error("Recent(2) should return 2 records")
	}
}

// ============================================================================
// Server Tests
// ============================================================================

func newTestServer(engine api.EngineInterface, ids api.Identifier) *api.Server {
	srvCfg := config.DefaultServer()
	srvCfg.BroadcastInterval = 10 * time.Millisecond
	srvCfg.RateLimit = 1000
	srvCfg.RateBurst = 1000
	return api.NewServer(api.ServerOptions{
		Engine:     engine,
		Identifier: ids,
		Server:     srvCfg,
		Limits:     config.DefaultLimits(),
	})
}

// TestServerForwardsIdentifications tests that formed molecules reach the
// classifier and its records reach /api/molecules
func TestServerForwardsIdentifications(t *testing.T) {
	ids := &MockIdentifier{}
	server := newTestServer(NewMockEngine(), ids)
	server.StartWorkers()
	defer server.Stop()

	comp := game.Composition{game.Hydrogen: 2, game.Oxygen: 1}
	mol := game.Molecule{Atoms: []game.AtomID{1, 2, 3}, Composition: comp, Formula: comp.Formula(), Points: 300}
	cb := server.Callbacks()
	cb.OnNotice(game.Notice{Kind: game.NoticeMoleculeFormed, Tick: 42, Molecule: &mol})
	cb.OnNotice(game.Notice{Kind: game.NoticeScore, Tick: 42, Points: 300})

	deadline := time.Now().Add(2 * time.Second)
	for server.Molecules().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/api/molecules")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	records := decode[[]classify.Record](t, resp)
	if len(records) != 1 || records[0].Formula != "H2O" || records[0].Tick != 42 {
		t.Errorf("unexpected records %+v", records)
	}
}

// TestWebSocketCommandsAndBroadcast tests pointer commands over the socket
// and the periodic state push
func TestWebSocketCommandsAndBroadcast(t *testing.T) {
	engine := NewMockEngine()
	server := newTestServer(engine, nil)
	server.StartWorkers()
	defer server.Stop()

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	for _, cmd := range []api.ClientCommand{
		{Type: api.CommandPointerDown, X: 100, Y: 100},
		{Type: api.CommandPointerMove, X: 130, Y: 100},
		{Type: api.CommandPointerUp},
	} {
		if err := conn.WriteJSON(cmd); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	for msg.Event != "game:state" {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
	}
	var snap game.GameSnapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil || len(snap.Atoms) != 2 {
		t.Errorf("bad state payload: %v %s", err, msg.Data)
	}

	deadline := time.Now().Add(time.Second)
	for len(engine.pointerCalls()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := strings.Join(engine.pointerCalls(), ","); got != "down,move,up" {
		t.Errorf("Expected down,move,up got %s", got)
	}
}

// TestWebSocketRejectsForeignOrigin tests the origin check on upgrade
func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	server := newTestServer(NewMockEngine(), nil)
	server.StartWorkers()
	defer server.Stop()

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://example.com"}}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

// TestAPIStats tests the stats endpoint includes classifier counters
func TestAPIStats(t *testing.T) {
	ids := &MockIdentifier{}
	ids.Submit(game.Molecule{Formula: "H2"}, 1)

	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Engine:         NewMockEngine(),
		Identifier:     ids,
		Molecules:      api.NewMoleculeFeed(5),
		EventLog:       game.NewEventLog(),
		DisableLogging: true,
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	stats := decode[map[string]json.RawMessage](t, resp)
	for _, key := range []string{"engine", "classifier", "rateLimit", "recentMolecules", "eventLog"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
	if !bytes.Contains(stats["classifier"], []byte(`"submitted":1`)) {
		t.Errorf("unexpected classifier stats %s", stats["classifier"])
	}
}

// TestClientIPTrustedProxies tests that forwarding headers only count when
// the peer is a configured proxy
func TestClientIPTrustedProxies(t *testing.T) {
	proxies, err := api.ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.5 "})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct", "203.0.113.7:5000", nil, "203.0.113.7"},
		{"spoofed from untrusted peer", "203.0.113.7:5000", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "5.6.7.8"}, "203.0.113.7"},
		{"behind proxy", "10.1.2.3:80", map[string]string{"X-Forwarded-For": "198.51.100.9"}, "198.51.100.9"},
		{"client-prepended hop ignored", "10.1.2.3:80", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.9, 10.9.9.9"}, "198.51.100.9"},
		{"real ip from proxy", "192.168.1.5:80", map[string]string{"X-Real-IP": "198.51.100.10"}, "198.51.100.10"},
		{"garbage header", "10.1.2.3:80", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := proxies.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}

	var none *api.TrustedProxies
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:80"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	if got := none.ClientIP(r); got != "10.1.2.3" {
		t.Errorf("nil proxies should use the peer, got %q", got)
	}

	if _, err := api.ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Error("Expected an error for a hostname")
	}
}

// TestRateLimitIgnoresSpoofedHeaders tests that rotating X-Forwarded-For
// does not buy a fresh bucket
func TestRateLimitIgnoresSpoofedHeaders(t *testing.T) {
	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Engine:         NewMockEngine(),
		DisableLogging: true,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		},
	}))
	defer ts.Close()

	limited := 0
	for i := 0; i < 8; i++ {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited < 5 {
		t.Errorf("Expected spoofed requests to share one bucket, only %d limited", limited)
	}
}

// TestServerStatsIncludeConnections tests the hub and limiter counters on
// /api/stats
func TestServerStatsIncludeConnections(t *testing.T) {
	server := newTestServer(NewMockEngine(), nil)
	server.StartWorkers()
	defer server.Stop()

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost:3000"}})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	stats := decode[struct {
		RateLimit api.LimiterStats `json:"rateLimit"`
		WebSocket api.HubStats     `json:"websocket"`
	}](t, resp)

	if stats.RateLimit.Allowed == 0 || stats.RateLimit.TrackedIPs != 1 {
		t.Errorf("unexpected limiter stats %+v", stats.RateLimit)
	}
	ws := stats.WebSocket
	if ws.Clients != 1 || ws.PerIP.IPs != 1 || ws.PerIP.Busiest != 1 || ws.PerIP.MaxPerIP != api.MaxWSConnectionsPerIP {
		t.Errorf("unexpected websocket stats %+v", ws)
	}
}

// TestServerBroadcastsSoundCues tests that notices with a cue are followed
// by an sfx event pointing at the cue route
func TestServerBroadcastsSoundCues(t *testing.T) {
	srvCfg := config.DefaultServer()
	srvCfg.BroadcastInterval = time.Hour
	server := api.NewServer(api.ServerOptions{
		Engine: NewMockEngine(),
		Sounds: &MockCues{},
		Server: srvCfg,
		Limits: config.DefaultLimits(),
	})
	server.StartWorkers()
	defer server.Stop()

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost:3000"}})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cb := server.Callbacks()
	cb.OnNotice(game.Notice{Kind: game.NoticeScore, Points: 100})
	cb.OnNotice(game.Notice{Kind: game.NoticeBondFormed, BondID: 7, Atoms: []game.AtomID{1, 2}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var events []string
	var cue struct {
		Cue string `json:"cue"`
		URL string `json:"url"`
	}
	for cue.Cue == "" {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON after %v: %v", events, err)
		}
		events = append(events, msg.Event)
		if msg.Event == "sfx" {
			if err := json.Unmarshal(msg.Data, &cue); err != nil {
				t.Fatal(err)
			}
		}
	}

	if cue.Cue != "bond" || cue.URL != "/api/sfx/bond.wav" {
		t.Errorf("unexpected cue %+v", cue)
	}
	if got := strings.Join(events, ","); !strings.HasSuffix(got, "score,bond:formed,sfx") {
		t.Errorf("Expected the cue right after bond:formed, got %s", got)
	}
}
