// Package classify names the molecules players build. Identification runs
// outside the simulation step: the arena scores and removes a molecule first,
// then hands its composition to a Dispatcher whose workers ask a Classifier
// for a common name and a short fact.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bond-arena/internal/config"
	"bond-arena/internal/game"
)

// Identification is what a classifier knows about a composition.
type Identification struct {
	Formula string `json:"formula"`
	Name    string `json:"name"`
	Fact    string `json:"fact"`
	Source  string `json:"source"` // "anthropic", "fallback", "mock"
}

// Classifier identifies a molecule from its composition.
type Classifier interface {
	// Identify returns a name and fact for comp. Implementations must honour
	// ctx cancellation.
	Identify(ctx context.Context, comp game.Composition) (*Identification, error)

	// Available reports whether the classifier is configured and worth
	// calling. The fallback reports false so selection logic prefers a real
	// provider.
	Available() bool
}

// Record is one identified molecule as shown to players.
type Record struct {
	Formula     string           `json:"formula"`
	Composition game.Composition `json:"composition"`
	Points      int              `json:"points"`
	Tick        uint64           `json:"tick"`
	Name        string           `json:"name"`
	Fact        string           `json:"fact"`
	Source      string           `json:"source"`
	Cached      bool             `json:"cached"`
	Fallback    bool             `json:"fallback"`
	Latency     time.Duration    `json:"latencyNs"`
	FormedAt    time.Time        `json:"formedAt"`
}

// New builds the classifier selected by cfg.Provider. An anthropic provider
// without a key degrades to the fallback.
func New(cfg config.ClassifierConfig) Classifier {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		c := NewAnthropicClassifier(cfg)
		if c.Available() {
			return c
		}
	}
	return NewFallbackClassifier()
}

// identifyPrompt asks for a strict JSON answer about one formula.
func identifyPrompt(comp game.Composition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A player built a molecule with formula %s (", comp.Formula())
	first := true
	for _, e := range game.Elements() {
		n := comp[e]
		if n == 0 {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d %s", n, e.Def().Name)
		first = false
	}
	b.WriteString(").\n")
	b.WriteString("Reply with only a JSON object: ")
	b.WriteString(`{"name": "<common name, or a systematic name if it has none>", `)
	b.WriteString(`"fact": "<one short, kid-friendly sentence about it>"}`)
	return b.String()
}

// parseIdentification pulls the JSON object out of a model reply. Models
// sometimes wrap it in prose or code fences.
func parseIdentification(text string) (*Identification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response: %q", text)
	}

	var out struct {
		Name string `json:"name"`
		Fact string `json:"fact"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decoding identification: %w", err)
	}
	out.Name = strings.TrimSpace(out.Name)
	if out.Name == "" {
		return nil, fmt.Errorf("identification has no name")
	}
	return &Identification{Name: out.Name, Fact: strings.TrimSpace(out.Fact)}, nil
}
