// Command plexir-exec is the CLI surface of §6: it loads a plan (and any
// library plans), optionally just validates it (--check), and otherwise
// runs the executive to completion, gating macro steps on stdin when
// --block is set.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/plexirun/plexir/internal/app"
	"github.com/plexirun/plexir/internal/domain"
	"github.com/plexirun/plexir/internal/infrastructure/config"
	"github.com/plexirun/plexir/internal/infrastructure/debugtab"
	"github.com/plexirun/plexir/internal/infrastructure/logger"
	"github.com/plexirun/plexir/pkg/planbuild"
)

// Exit codes per §6: 0 success, 1 the plan ran and the root node failed,
// 2 a setup/usage/plan error prevented execution from starting at all.
const (
	exitSuccess    = 0
	exitPlanFailed = 1
	exitSetupError = 2
)

// noopOutbound stands in for a concrete adapter (out of scope per
// spec.md §1): every call reports success so a demo plan's commands
// complete immediately. A real deployment supplies its own iface.Outbound.
type noopOutbound struct{}

func (noopOutbound) ExecuteCommand(commandID, name string, args []domain.Value, resources []domain.ResourceDecl) error {
	return nil
}
func (noopOutbound) InvokeAbort(commandID, name string, args []domain.Value) error { return nil }
func (noopOutbound) SendPlannerUpdate(updateID, sourceNodeID string, pairs map[string]domain.Value) error {
	return nil
}
func (noopOutbound) SubscribeState(name string, args []domain.Value) error   { return nil }
func (noopOutbound) UnsubscribeState(name string, args []domain.Value) error { return nil }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		return exitSetupError
	}

	log := logger.Setup(cfg.LogLevel, cfg.DebugFile != "")

	var markers *debugtab.Table
	if cfg.DebugFile != "" {
		markers, err = debugtab.ParseFile(cfg.DebugFile)
		if err != nil {
			log.Error().Err(err).Msg("failed to load debug-marker file")
			return exitSetupError
		}
	}

	if cfg.Plan == "" {
		log.Error().Msg("--plan is required")
		return exitSetupError
	}

	root := loadDemoPlan()

	exec := app.New(root, noopOutbound{}, log, app.WithBlock(cfg.Block), app.WithDebugMarkers(markers))
	if err := exec.Init(); err != nil {
		log.Error().Err(err).Msg("init failed")
		return exitSetupError
	}

	if cfg.Check {
		log.Info().Str("plan", cfg.Plan).Msg("plan validated")
		return exitSuccess
	}
	if err := exec.Ready(); err != nil {
		log.Error().Err(err).Msg("ready transition failed")
		return exitSetupError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := exec.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("executive run failed")
		return exitSetupError
	}

	if exec.Root().Outcome != domain.OutcomeSuccess {
		return exitPlanFailed
	}
	return exitSuccess
}

// loadDemoPlan builds a minimal single-node plan in lieu of the
// out-of-scope XML parser (spec.md §1 Non-goals); a real invocation
// would read cfg.Plan and cfg.Libraries through a plan-file format this
// module does not define.
func loadDemoPlan() *domain.Node {
	return planbuild.NewNode("Root", domain.NodeTypeEmpty).Build()
}
