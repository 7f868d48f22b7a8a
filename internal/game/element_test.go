package game

import (
	"encoding/json"
	"math/rand"
	"testing"
)

// TestElementTable verifies every element has positive properties
func TestElementTable(t *testing.T) {
	if len(Elements()) != 7 {
		t.Fatalf("Expected 7 elements, got %d", len(Elements()))
	}
	for _, e := range Elements() {
		def := e.Def()
		if def.Valency < 1 || def.Mass <= 0 || def.Radius <= 0 {
			t.Errorf("%s has invalid def %+v", e, def)
		}
		if def.Symbol == "" || def.Color == "" {
			t.Errorf("%s missing presentation data", e)
		}
	}
	if Element(0).Valid() || Element(42).Valid() {
		t.Error("out of range elements should be invalid")
	}
}

// TestValencies verifies the capacity table
func TestValencies(t *testing.T) {
	tests := []struct {
		e    Element
		want int
	}{
		{Hydrogen, 1}, {Carbon, 4}, {Nitrogen, 3}, {Oxygen, 2},
		{Fluorine, 1}, {Chlorine, 1}, {Sulfur, 2},
	}
	for _, tt := range tests {
		if got := tt.e.Valency(); got != tt.want {
			t.Errorf("%s valency = %d, want %d", tt.e, got, tt.want)
		}
	}
}

// TestParseElement verifies symbol lookup is exact
func TestParseElement(t *testing.T) {
	e, err := ParseElement("Cl")
	if err != nil || e != Chlorine {
		t.Errorf("ParseElement(Cl) = %v, %v", e, err)
	}
	if _, err := ParseElement("cl"); err == nil {
		t.Error("lowercase symbol should not parse")
	}
	if _, err := ParseElement("Xx"); err == nil {
		t.Error("unknown symbol should not parse")
	}
}

// TestRandomElementFavorsHydrogen verifies the spawn weighting
func TestRandomElementFavorsHydrogen(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	counts := make(map[Element]int)
	for i := 0; i < 10000; i++ {
		counts[RandomElement(rng)]++
	}
	for _, e := range Elements() {
		if counts[e] == 0 {
			t.Errorf("%s never spawned", e)
		}
		if e != Hydrogen && counts[e] >= counts[Hydrogen] {
			t.Errorf("%s spawned %d times, hydrogen only %d", e, counts[e], counts[Hydrogen])
		}
	}
}

// TestFormulaHillOrder verifies formula rendering
func TestFormulaHillOrder(t *testing.T) {
	tests := []struct {
		comp Composition
		want string
	}{
		{Composition{Hydrogen: 2, Oxygen: 1}, "H2O"},
		{Composition{Carbon: 1, Hydrogen: 4}, "CH4"},
		{Composition{Hydrogen: 1, Chlorine: 1}, "ClH"},
		{Composition{Carbon: 2, Hydrogen: 6, Oxygen: 1}, "C2H6O"},
		{Composition{Nitrogen: 1, Hydrogen: 3}, "H3N"},
		{Composition{Carbon: 1, Oxygen: 2}, "CO2"},
		{Composition{Sulfur: 1, Fluorine: 2}, "F2S"},
		{Composition{}, ""},
	}
	for _, tt := range tests {
		if got := tt.comp.Formula(); got != tt.want {
			t.Errorf("Formula(%v) = %q, want %q", tt.comp, got, tt.want)
		}
	}
}

// TestParseFormula verifies flat formulas round trip through Hill order
func TestParseFormula(t *testing.T) {
	for _, f := range []string{"H2O", "CH4", "C2H6O", "ClH", "H3N"} {
		comp, err := ParseFormula(f)
		if err != nil {
			t.Errorf("ParseFormula(%q): %v", f, err)
			continue
		}
		if got := comp.Formula(); got != f {
			t.Errorf("ParseFormula(%q).Formula() = %q", f, got)
		}
	}

	comp, err := ParseFormula("HOH")
	if err != nil || comp[Hydrogen] != 2 || comp[Oxygen] != 1 {
		t.Errorf("repeated symbols should accumulate, got %v, %v", comp, err)
	}

	for _, bad := range []string{"", "h2o", "H0", "Xy2", "H2-"} {
		if _, err := ParseFormula(bad); err == nil {
			t.Errorf("ParseFormula(%q) should fail", bad)
		}
	}
}

// TestCompositionJSON verifies compositions serialize keyed by symbol
func TestCompositionJSON(t *testing.T) {
	data, err := json.Marshal(Composition{Hydrogen: 2, Oxygen: 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"H":2,"O":1}` {
		t.Errorf("got %s", data)
	}

	var back Composition
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back[Hydrogen] != 2 || back[Oxygen] != 1 {
		t.Errorf("decoded %v", back)
	}
}
