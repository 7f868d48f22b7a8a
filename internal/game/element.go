package game

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Element is an atom type. The zero value is invalid.
type Element uint8

const (
	Hydrogen Element = iota + 1
	Carbon
	Nitrogen
	Oxygen
	Fluorine
	Chlorine
	Sulfur
)

// ElementDef holds the immutable properties of an element.
type ElementDef struct {
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Valency int     `json:"valency"`
	Mass    float64 `json:"mass"`
	Radius  float64 `json:"radius"`
	Color   string  `json:"color"`
	Weight  int     `json:"spawnWeight"`
}

// elementTable is indexed by Element. Index 0 is the invalid element.
var elementTable = [...]ElementDef{
	{},
	Hydrogen: {Symbol: "H", Name: "Hydrogen", Valency: 1, Mass: 1.0, Radius: 14, Color: "#F5F5F5", Weight: 40},
	Carbon:   {Symbol: "C", Name: "Carbon", Valency: 4, Mass: 2.0, Radius: 22, Color: "#404040", Weight: 15},
	Nitrogen: {Symbol: "N", Name: "Nitrogen", Valency: 3, Mass: 2.2, Radius: 21, Color: "#3050F8", Weight: 10},
	Oxygen:   {Symbol: "O", Name: "Oxygen", Valency: 2, Mass: 2.4, Radius: 20, Color: "#FF0D0D", Weight: 20},
	Fluorine: {Symbol: "F", Name: "Fluorine", Valency: 1, Mass: 2.6, Radius: 17, Color: "#90E050", Weight: 5},
	Chlorine: {Symbol: "Cl", Name: "Chlorine", Valency: 1, Mass: 3.2, Radius: 24, Color: "#1FF01F", Weight: 5},
	Sulfur:   {Symbol: "S", Name: "Sulfur", Valency: 2, Mass: 3.0, Radius: 24, Color: "#FFFF30", Weight: 5},
}

// spawnTotalWeight is the sum of all spawn weights.
var spawnTotalWeight = func() int {
	total := 0
	for _, e := range Elements() {
		total += elementTable[e].Weight
	}
	return total
}()

// maxElementRadius is the largest radius in the table, used to size
// broad phase queries.
var maxElementRadius = func() float64 {
	largest := 0.0
	for _, e := range Elements() {
		if r := elementTable[e].Radius; r > largest {
			largest = r
		}
	}
	return largest
}()

// Elements returns every valid element in table order.
func Elements() []Element {
	return []Element{Hydrogen, Carbon, Nitrogen, Oxygen, Fluorine, Chlorine, Sulfur}
}

// Valid reports whether e is in the element table.
func (e Element) Valid() bool {
	return e >= Hydrogen && int(e) < len(elementTable)
}

// Def returns the element's properties. Invalid elements return the zero def.
func (e Element) Def() ElementDef {
	if !e.Valid() {
		return ElementDef{}
	}
	return elementTable[e]
}

func (e Element) Valency() int    { return e.Def().Valency }
func (e Element) Mass() float64   { return e.Def().Mass }
func (e Element) Radius() float64 { return e.Def().Radius }

func (e Element) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Element(%d)", uint8(e))
	}
	return elementTable[e].Symbol
}

// MarshalText encodes the element as its symbol, so compositions serialize
// as {"H":2,"O":1}.
func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid element %d", uint8(e))
	}
	return []byte(elementTable[e].Symbol), nil
}

func (e *Element) UnmarshalText(text []byte) error {
	parsed, err := ParseElement(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseElement resolves a symbol such as "Cl". Matching is case-sensitive.
func ParseElement(symbol string) (Element, error) {
	for _, e := range Elements() {
		if elementTable[e].Symbol == symbol {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown element symbol %q", symbol)
}

// RandomElement picks an element using the fixed spawn weights.
func RandomElement(rng *rand.Rand) Element {
	roll := rng.Intn(spawnTotalWeight)
	for _, e := range Elements() {
		roll -= elementTable[e].Weight
		if roll < 0 {
			return e
		}
	}
	return Hydrogen
}

// =============================================================================
// COMPOSITION
// =============================================================================

// Composition is a multiset of elements, e.g. water is {H:2, O:1}.
type Composition map[Element]int

// Size returns the total number of atoms.
func (c Composition) Size() int {
	n := 0
	for _, count := range c {
		n += count
	}
	return n
}

// Formula renders the composition in Hill order: carbon first, then
// hydrogen, then the rest alphabetically. Without carbon every symbol,
// hydrogen included, is alphabetical.
func (c Composition) Formula() string {
	symbols := make([]string, 0, len(c))
	counts := make(map[string]int, len(c))
	for e, n := range c {
		if n <= 0 || !e.Valid() {
			continue
		}
		sym := e.String()
		symbols = append(symbols, sym)
		counts[sym] = n
	}

	_, hasCarbon := counts["C"]
	rank := func(sym string) int {
		if !hasCarbon {
			return 2
		}
		switch sym {
		case "C":
			return 0
		case "H":
			return 1
		}
		return 2
	}
	sort.Slice(symbols, func(i, j int) bool {
		ri, rj := rank(symbols[i]), rank(symbols[j])
		if ri != rj {
			return ri < rj
		}
		return symbols[i] < symbols[j]
	})

	var b strings.Builder
	for _, sym := range symbols {
		b.WriteString(sym)
		if n := counts[sym]; n > 1 {
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}

// ParseFormula parses a flat formula such as "CH4" or "HCl". Groups and
// charges are not supported.
func ParseFormula(formula string) (Composition, error) {
	comp := make(Composition)
	i := 0
	for i < len(formula) {
		ch := formula[i]
		if ch < 'A' || ch > 'Z' {
			return nil, fmt.Errorf("unexpected %q at %d in %q", ch, i, formula)
		}
		j := i + 1
		for j < len(formula) && formula[j] >= 'a' && formula[j] <= 'z' {
			j++
		}
		e, err := ParseElement(formula[i:j])
		if err != nil {
			return nil, err
		}
		k := j
		for k < len(formula) && formula[k] >= '0' && formula[k] <= '9' {
			k++
		}
		count := 1
		if k > j {
			count, err = strconv.Atoi(formula[j:k])
			if err != nil || count == 0 {
				return nil, fmt.Errorf("bad count in %q", formula)
			}
		}
		comp[e] += count
		i = k
	}
	if len(comp) == 0 {
		return nil, fmt.Errorf("empty formula")
	}
	return comp, nil
}
