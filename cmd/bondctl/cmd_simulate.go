package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/spf13/cobra"

	"bond-arena/internal/config"
	"bond-arena/internal/game"
	"bond-arena/internal/render"
)

// dragTicks is how long one scripted drag chases its target.
const dragTicks = 90

func loadConfig(cmd *cobra.Command) (config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		cfg := config.Load()
		return cfg, cfg.Validate()
	}
	return config.LoadFile(path)
}

// simulationReport is the outcome of a headless run.
type simulationReport struct {
	Seed        int64              `json:"seed"`
	Ticks       int                `json:"ticks"`
	Drags       int                `json:"drags"`
	Grabbed     int                `json:"grabbed"`
	Notices     map[string]int     `json:"notices"`
	Molecules   []string           `json:"molecules"`
	Result      game.SessionResult `json:"result"`
	FinalAtoms  int                `json:"finalAtoms"`
	FinalBonds  int                `json:"finalBonds"`
	Consistency string             `json:"consistency"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a headless session with scripted drags",
		Long: `Runs a session without the tick loop or network. Each drag grabs an
atom with free valency and chases the nearest other such atom, then lets go.
Bond bookkeeping is checked after every step; the first violation aborts the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ticks, _ := cmd.Flags().GetInt("ticks")
			seed, _ := cmd.Flags().GetInt64("seed")
			drags, _ := cmd.Flags().GetInt("drags")
			framePath, _ := cmd.Flags().GetString("frame")
			verbose, _ := cmd.Flags().GetBool("verbose")

			if ticks <= 0 {
				return fmt.Errorf("--ticks must be positive")
			}

			report, snap, err := runSimulation(appCfg, seed, ticks, drags, func(n game.Notice) {
				if verbose && !jsonOutput(cmd) {
					fmt.Fprintf(cmd.OutOrStdout(), "tick %5d  %-16s %s\n", n.Tick, n.Kind, describeNotice(n))
				}
			})
			if err != nil {
				return err
			}

			if framePath != "" {
				if err := render.New(appCfg.Arena).SavePNG(framePath, snap); err != nil {
					return err
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed %d, %d ticks, %d drags (%d grabbed)\n", report.Seed, report.Ticks, report.Drags, report.Grabbed)
			fmt.Fprintf(out, "score %d, %d molecules, %d bonds formed, %d rejections\n",
				report.Result.Score, report.Result.Molecules, report.Result.BondsFormed, report.Result.Rejections)
			for _, f := range report.Molecules {
				fmt.Fprintf(out, "  %s\n", f)
			}
			fmt.Fprintf(out, "final: %d atoms, %d bonds, bookkeeping %s\n", report.FinalAtoms, report.FinalBonds, report.Consistency)
			if framePath != "" {
				fmt.Fprintf(out, "frame written to %s\n", framePath)
			}
			return nil
		},
	}

	cmd.Flags().Int("ticks", 1800, "Ticks to simulate")
	cmd.Flags().Int64("seed", 1, "Random seed")
	cmd.Flags().Int("drags", 20, "Scripted drags spread over the run")
	cmd.Flags().String("frame", "", "Write the final frame as PNG to this path")
	cmd.Flags().BoolP("verbose", "v", false, "Print every notice")
	return cmd
}

// runSimulation drives an engine by hand and returns the report and the
// snapshot taken before the session is stopped.
func runSimulation(appCfg config.AppConfig, seed int64, ticks, drags int, onNotice func(game.Notice)) (simulationReport, *game.GameSnapshot, error) {
	engCfg := game.EngineConfigFrom(appCfg)
	engCfg.Seed = seed
	engine := game.NewEngine(engCfg)

	report := simulationReport{Seed: seed, Ticks: ticks, Notices: map[string]int{}}
	engine.SetCallbacks(game.Callbacks{
		OnNotice: func(n game.Notice) {
			report.Notices[n.Kind.String()]++
			if n.Kind == game.NoticeMoleculeFormed && n.Molecule != nil {
				report.Molecules = append(report.Molecules, n.Molecule.Formula)
			}
			if onNotice != nil {
				onNotice(n)
			}
		},
	})
	engine.StartSession("bondctl")

	rng := rand.New(rand.NewSource(seed))
	every := ticks
	if drags > 0 {
		every = max(ticks/drags, dragTicks+10)
	}

	var target game.AtomID
	dragEnd := 0
	for tick := 1; tick <= ticks; tick++ {
		switch {
		case drags > 0 && report.Drags < drags && tick%every == 0:
			report.Drags++
			if held, tgt, ok := pickDrag(engine.GetSnapshot(), rng); ok {
				if engine.PointerDown(held.X, held.Y) {
					report.Grabbed++
					target = tgt
					dragEnd = tick + dragTicks
				}
			}
		case target != 0 && tick >= dragEnd:
			engine.PointerUp()
			target = 0
		case target != 0:
			if a, ok := engine.Atom(target); ok {
				engine.PointerMove(a.X, a.Y)
			} else {
				engine.PointerUp()
				target = 0
			}
		}

		engine.Step()
		if err := engine.Validate(); err != nil {
			return report, nil, fmt.Errorf("tick %d: %w", tick, err)
		}
	}
	if target != 0 {
		engine.PointerUp()
	}

	snap := engine.GetSnapshot()
	report.FinalAtoms = len(snap.Atoms)
	report.FinalBonds = len(snap.Bonds)
	report.Consistency = "ok"
	report.Result = engine.StopSession()
	return report, snap, nil
}

// pickDrag chooses a random atom with free valency and the nearest other
// atom that can still bond.
func pickDrag(snap *game.GameSnapshot, rng *rand.Rand) (game.AtomSnapshot, game.AtomID, bool) {
	var open []game.AtomSnapshot
	for _, a := range snap.Atoms {
		if a.CurrentBonds < a.Valency && a.Scale > 0.9 {
			open = append(open, a)
		}
	}
	if len(open) < 2 {
		return game.AtomSnapshot{}, 0, false
	}

	held := open[rng.Intn(len(open))]
	var best game.AtomID
	bestDist := math.Inf(1)
	for _, a := range open {
		if a.ID == held.ID {
			continue
		}
		if d := math.Hypot(a.X-held.X, a.Y-held.Y); d < bestDist {
			best, bestDist = a.ID, d
		}
	}
	return held, best, true
}

func describeNotice(n game.Notice) string {
	switch n.Kind {
	case game.NoticeMoleculeFormed:
		if n.Molecule != nil {
			return fmt.Sprintf("%s (+%d)", n.Molecule.Formula, n.Molecule.Points)
		}
	case game.NoticeBondRejected:
		return n.Reason
	case game.NoticeScore:
		return fmt.Sprintf("+%d", n.Points)
	case game.NoticeBondFormed, game.NoticeBondUndone:
		return fmt.Sprintf("bond %d %v", n.BondID, n.Atoms)
	case game.NoticeAtomSpawned:
		return n.Element.String()
	}
	return ""
}
