// Command orchestrate is a one-shot CLI demo harness for the reasoning
// orchestrator: it takes a free-text query, optionally builds a mission
// plan, runs the engine, and prints the cohesive final document.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/reasonline/engine/pkg/adapter"
	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/config"
	"github.com/reasonline/engine/pkg/memory"
	"github.com/reasonline/engine/pkg/mockbackend"
	"github.com/reasonline/engine/pkg/orchestrator"
)

func main() {
	os.Exit(run())
}

type flags struct {
	memPath      string
	concurrent   int
	rounds       int
	verbose      bool
	useMock      bool
	noMission    bool
	printMission bool
}

func run() int {
	var f flags

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := &cobra.Command{
		Use:          "orchestrate [query words...]",
		Short:        "Run the reasoning orchestrator against a free-text query",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), strings.Join(args, " "), f)
		},
	}

	cmd.Flags().StringVar(&f.memPath, "mem", "memory.json", "memory store file path")
	cmd.Flags().IntVar(&f.concurrent, "concurrent", 0, "override node concurrency (0 keeps the config default)")
	cmd.Flags().IntVar(&f.rounds, "rounds", 0, "override max improvement rounds (0 keeps the config default)")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "enable debug logging")
	cmd.Flags().BoolVar(&f.useMock, "mock", false, "use the deterministic mock backend")
	cmd.Flags().BoolVar(&f.noMission, "no-mission", false, "skip mission plan generation")
	cmd.Flags().BoolVar(&f.printMission, "print-mission", false, "print the generated mission plan and exit, without running")

	err := cmd.ExecuteContext(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, query string, f flags) error {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if f.concurrent > 0 {
		cfg.SetConcurrent(f.concurrent)
	}
	if f.rounds > 0 {
		cfg.SetMaxRounds(f.rounds)
	}

	mem, err := memory.Open(f.memPath, log)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}

	var solver bbtypes.Solver
	var plannerLLM bbtypes.PlannerLLM
	if f.useMock {
		solver, plannerLLM = mockbackend.BuildDefault()
	} else {
		return fmt.Errorf("no production backend is wired into this binary: pass --mock, or embed pkg/adapter.Adapter around your own bbtypes.Solver/PlannerLLM implementation")
	}

	missionJSON := ""
	if !f.noMission {
		planner := &adapter.PlannerLLM{LLM: plannerLLM}
		if mission, merr := planner.Plan(ctx, query, "mission"); merr == nil {
			if blob, serr := sonic.MarshalString(mission); serr == nil {
				missionJSON = blob
			}
		} else {
			log.Warn("mission planning failed, continuing without one", "error", merr)
		}
	}

	if f.printMission {
		if missionJSON == "" {
			fmt.Println("{}")
		} else {
			fmt.Println(missionJSON)
		}
		return nil
	}

	orch := orchestrator.New(solver, plannerLLM, mem, cfg, log)
	result, err := orch.Run(ctx, query, missionJSON, "")
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Println(result.Final)
	log.Info("run complete", "run_id", result.RunID, "classification", result.Classification.Kind)
	return nil
}
