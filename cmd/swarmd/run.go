package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/swarmd/internal/config"
	"github.com/fyrsmithlabs/swarmd/internal/llm"
	"github.com/fyrsmithlabs/swarmd/internal/orchestrator"
	"github.com/fyrsmithlabs/swarmd/internal/pheromone"
	"github.com/fyrsmithlabs/swarmd/internal/plan"
	"github.com/fyrsmithlabs/swarmd/internal/priming"
	"github.com/fyrsmithlabs/swarmd/internal/store"
	"github.com/fyrsmithlabs/swarmd/internal/telemetry"
	"github.com/fyrsmithlabs/swarmd/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run <plan.md>",
	Short: "Ingest a plan and drive it to completion",
	Long: `Parse and validate a structured plan, ingest it into the knowledge
store as a dependency-ordered task graph, then run the orchestration loop
until every task settles or a stop condition is hit.

Examples:
  swarmd run plan.md
  swarmd run --config /etc/swarmd/config.yaml plan.md`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background()) //nolint:errcheck

	metrics, err := telemetry.NewMetrics(tel.Meter("swarmd"))
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read plan %s: %w", args[0], err)
	}
	doc, err := plan.Parse(string(content))
	if err != nil {
		return fmt.Errorf("plan %s: %w", args[0], err)
	}

	project, tasks, err := orchestrator.IngestPlan(ctx, s, doc)
	if err != nil {
		return fmt.Errorf("ingest plan: %w", err)
	}
	logger.Info(ctx, "plan ingested",
		zap.String("project_id", project.ID),
		zap.String("project", project.Name),
		zap.Int("tasks", len(tasks)))

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	signals := pheromone.NewEngine(s, logger)
	workspaces := worker.NewGitWorkspaces(cfg.Workspace.SourceRepo, cfg.Workspace.Root, logger)
	sessions := worker.NewLocalSessions(client, llm.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	primer := priming.NewPrimer(s, signals,
		priming.NewDirScanner(cfg.Workspace.Root),
		priming.NewStoreSnippets(s), logger)

	loop := orchestrator.New(orchestrator.Deps{
		Store:    s,
		Signals:  signals,
		Primer:   primer,
		Dispatch: worker.NewDispatcher(workspaces, sessions),
		Client:   client,
		Metrics:  metrics,
		Logger:   logger,
	}, orchestrator.Config{
		TickInterval:        cfg.Orchestrator.TickInterval.Duration(),
		BaseBranch:          cfg.Workspace.BaseBranch,
		EscalationThreshold: cfg.Orchestrator.EscalationThreshold,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info(ctx, "shutting down", zap.String("signal", sig.String()))
		loop.Shutdown()
	}()

	state, err := loop.Run(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("orchestration ended in state %s: %w", state, err)
	}

	fmt.Printf("Run finished: %s\n", state)
	fmt.Printf("Tokens used: %d\n", client.GetTokenUsage())
	return printTaskSummary(ctx, s, project.ID)
}

// newLLMClient builds the langchaingo-backed model client from config.
func newLLMClient(cfg *config.Config) (llm.Client, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.LLM.Model),
		openai.WithToken(cfg.LLM.APIKey.Value()),
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return llm.NewLangChain(model, cfg.LLM.TokenBudget), nil
}

// printTaskSummary lists every task with its final status.
func printTaskSummary(ctx context.Context, s store.Store, projectID string) error {
	tasks, err := s.ListTasks(ctx, projectID)
	if err != nil {
		return err
	}
	fmt.Println("Tasks:")
	for _, t := range tasks {
		line := fmt.Sprintf("  %-12s %s", t.Status, t.Title)
		if t.Escalation != store.EscalationNone {
			line += fmt.Sprintf(" (%s)", t.Escalation)
		}
		fmt.Println(line)
	}
	return nil
}
