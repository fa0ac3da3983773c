package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/isrc101/crew/internal/agent"
	"github.com/isrc101/crew/internal/config"
	"github.com/isrc101/crew/internal/coordinator"
	"github.com/isrc101/crew/internal/renderer"
	"github.com/isrc101/crew/internal/roles"
	"github.com/isrc101/crew/pkg/models"
)

var (
	runMaxParallel int
	runBudget      int64
	runAgentBudget int64
	runNoReview    bool
	runMaxRework   int
	runTaskTimeout time.Duration
	runRolesFile   string
	runWatchRoles  bool
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Execute a request with a crew of agents",
	Long: `Run decomposes the request into a task graph, spawns one worker pool per
role used by the plan, and drives the tasks to completion with automatic
review, rework, timeout, and budget handling. The synthesized answer is
printed when the crew finishes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCrew,
}

func init() {
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Max worker instances per role (0 uses config)")
	runCmd.Flags().Int64Var(&runBudget, "budget", -1, "Global token budget, 0 for unlimited (-1 uses config)")
	runCmd.Flags().Int64Var(&runAgentBudget, "agent-budget", -1, "Per-agent token budget, 0 for unlimited (-1 uses config)")
	runCmd.Flags().BoolVar(&runNoReview, "no-review", false, "Disable the automatic review cycle")
	runCmd.Flags().IntVar(&runMaxRework, "max-rework", -1, "Max rework cycles per task (-1 uses config)")
	runCmd.Flags().DurationVar(&runTaskTimeout, "task-timeout", 0, "Per-task timeout (0 uses config)")
	runCmd.Flags().StringVar(&runRolesFile, "roles", "", "YAML role catalog overlay (defaults to config roles_file)")
	runCmd.Flags().BoolVar(&runWatchRoles, "watch-roles", false, "Reload the role catalog when its file changes")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Include status ticks and budget details in output")
}

func runCrew(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cfg)

	apiKey := ""
	if !cfg.Anthropic.UseBedrock {
		apiKey, err = config.GetAPIKey(cfg)
		if err != nil {
			return err
		}
	}
	client, err := agent.NewClient(agent.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	registry := roles.NewRegistry()
	if cfg.RolesFile != "" {
		if err := registry.LoadFile(cfg.RolesFile); err != nil {
			return fmt.Errorf("loading roles file: %w", err)
		}
		if runWatchRoles {
			watcher, err := config.WatchRolesFile(cfg.RolesFile, registry, func(loadErr error) {
				if loadErr != nil {
					fmt.Fprintf(os.Stderr, "roles reload failed: %v\n", loadErr)
				}
			})
			if err != nil {
				return fmt.Errorf("watching roles file: %w", err)
			}
			defer watcher.Close()
		}
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	coord := coordinator.NewFromClient(client,
		coordinator.WithRoles(registry),
		coordinator.WithProjectRoot(projectRoot),
		coordinator.WithMaxParallel(cfg.Crew.MaxParallel),
		coordinator.WithTokenBudget(cfg.Crew.TokenBudget),
		coordinator.WithPerAgentBudget(cfg.Crew.PerAgentBudget),
		coordinator.WithAutoReview(cfg.Crew.AutoReview),
		coordinator.WithMaxRework(cfg.Crew.MaxRework),
		coordinator.WithMessageTimeout(cfg.Crew.MessageTimeout),
		coordinator.WithTaskTimeout(cfg.Crew.TaskTimeout),
		coordinator.WithWarningThresholds(cfg.Crew.WarningThresholds),
	)
	defer coord.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := renderer.New(os.Stdout, runVerbose)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		console.Follow(coord.Events())
	}()

	answer, err := coord.Run(ctx, request)
	<-rendered
	if err != nil {
		return err
	}

	var results []*models.TaskResult
	for _, t := range coord.Board().AllTasks() {
		if r := coord.Board().GetResult(t.ID); r != nil {
			results = append(results, r)
		}
	}
	console.Summary(results, coord.Board().SkippedTasks())

	fmt.Printf("\n%s\n", answer)
	return nil
}

// applyFlags overlays explicitly-set command flags onto the loaded config.
func applyFlags(cfg *config.Config) {
	if runMaxParallel > 0 {
		cfg.Crew.MaxParallel = runMaxParallel
	}
	if runBudget >= 0 {
		cfg.Crew.TokenBudget = runBudget
	}
	if runAgentBudget >= 0 {
		cfg.Crew.PerAgentBudget = runAgentBudget
	}
	if runNoReview {
		cfg.Crew.AutoReview = false
	}
	if runMaxRework >= 0 {
		cfg.Crew.MaxRework = runMaxRework
	}
	if runTaskTimeout > 0 {
		cfg.Crew.TaskTimeout = runTaskTimeout
	}
	if runRolesFile != "" {
		cfg.RolesFile = runRolesFile
	}
}
