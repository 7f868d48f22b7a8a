package classify

import (
	"context"
	"fmt"

	"bond-arena/internal/game"
)

type knownMolecule struct {
	name string
	fact string
}

// knownMolecules covers the small molecules players build most often, keyed
// by Hill formula.
var knownMolecules = map[string]knownMolecule{
	"H2":    {"Hydrogen gas", "The lightest gas there is; stars are mostly made of it."},
	"O2":    {"Oxygen", "About a fifth of every breath you take."},
	"N2":    {"Nitrogen", "Makes up most of the air around you."},
	"F2":    {"Fluorine", "So reactive it can make glass burn."},
	"Cl2":   {"Chlorine", "A yellow-green gas used to keep pools clean."},
	"H2O":   {"Water", "Covers about 71% of Earth's surface."},
	"H2O2":  {"Hydrogen peroxide", "Fizzes when it touches a cut because it breaks into water and oxygen."},
	"CH4":   {"Methane", "The main ingredient of natural gas."},
	"H3N":   {"Ammonia", "Plants get much of their nitrogen from ammonia-based fertiliser."},
	"CO2":   {"Carbon dioxide", "Plants breathe it in and give oxygen back."},
	"ClH":   {"Hydrogen chloride", "Dissolved in water it becomes stomach acid."},
	"FH":    {"Hydrogen fluoride", "Strong enough to etch glass."},
	"H2S":   {"Hydrogen sulfide", "Smells like rotten eggs."},
	"CS2":   {"Carbon disulfide", "A liquid that once helped make rayon fabric."},
	"CHN":   {"Hydrogen cyanide", "Smells faintly of bitter almonds."},
	"CH2O":  {"Formaldehyde", "Used to preserve specimens in museums."},
	"CH4O":  {"Methanol", "The simplest alcohol, sometimes called wood alcohol."},
	"C2H6":  {"Ethane", "A gas found alongside natural gas."},
	"C2H4":  {"Ethylene", "Helps fruit ripen."},
	"C2H2":  {"Acetylene", "Burns hot enough to cut steel."},
	"C2H6O": {"Ethanol", "The alcohol found in drinks and some fuels."},
	"CCl4":  {"Carbon tetrachloride", "Was once used in fire extinguishers."},
	"CF4":   {"Tetrafluoromethane", "One of the most stable gases ever made."},
	"CH3Cl": {"Chloromethane", "Seaweed and fungi release it naturally."},
	"H4N2":  {"Hydrazine", "A rocket fuel used to steer spacecraft."},
	"F3N":   {"Nitrogen trifluoride", "Used to clean the machines that make computer chips."},
	"F2O":   {"Oxygen difluoride", "One of the few compounds where oxygen is bonded to fluorine."},
	"Cl2O":  {"Dichlorine monoxide", "A brownish gas that bleaches things."},
	"F2S":   {"Sulfur difluoride", "An unstable gas chemists study in the lab."},
	"Cl2S":  {"Sulfur dichloride", "A cherry-red liquid."},
	"HNO":   {"Nitroxyl", "A tiny molecule studied for heart medicine."},
}

// FallbackClassifier names molecules from a built-in table, falling back to
// the Hill formula. It never fails and never calls out.
type FallbackClassifier struct{}

// NewFallbackClassifier creates a FallbackClassifier.
func NewFallbackClassifier() *FallbackClassifier {
	return &FallbackClassifier{}
}

// Identify implements Classifier.
func (c *FallbackClassifier) Identify(ctx context.Context, comp game.Composition) (*Identification, error) {
	return fallbackIdentification(comp), nil
}

// Available returns false because this is the fallback.
func (c *FallbackClassifier) Available() bool {
	return false
}

func fallbackIdentification(comp game.Composition) *Identification {
	formula := comp.Formula()
	if known, ok := knownMolecules[formula]; ok {
		return &Identification{Formula: formula, Name: known.name, Fact: known.fact, Source: "fallback"}
	}
	return &Identification{
		Formula: formula,
		Name:    formula,
		Fact:    fmt.Sprintf("A stable molecule of %d atoms.", comp.Size()),
		Source:  "fallback",
	}
}
