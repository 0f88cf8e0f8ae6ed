// Command specctxd runs the spec-context dispatch-orchestration MCP server.
//
// It communicates over stdio using JSON-RPC 2.0 (MCP protocol) and
// mediates between an orchestrator session and the implementer/reviewer
// sub-agents it dispatches, persisting all state to flat files under the
// project's .spec-context directory.
//
// Required environment variables (at least one chat provider key):
//
//	SPEC_CONTEXT_ANTHROPIC_API_KEY - Anthropic API key for the claude route
//	SPEC_CONTEXT_OPENAI_API_KEY    - OpenAI-compatible API key for the codex route
//
// Optional environment variables:
//
//	SPEC_CONTEXT_CONFIG         - path to a spec-context.toml config file
//	SPEC_CONTEXT_LOG_LEVEL      - debug, info, warn, error (default: info)
//	SPEC_WORKFLOW_HOME          - project root holding .spec-context (default: cwd)
//	SPEC_WORKFLOW_DASHBOARD_URL - wait-for-approval long-poll target
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/spec-context/specctxd/internal/approvals"
	"github.com/spec-context/specctxd/internal/chat"
	"github.com/spec-context/specctxd/internal/config"
	"github.com/spec-context/specctxd/internal/dispatch"
	"github.com/spec-context/specctxd/internal/mcp"
	"github.com/spec-context/specctxd/internal/steering"
	"github.com/spec-context/specctxd/internal/tools/dispatchtool"
	"github.com/spec-context/specctxd/internal/tools/guides"
	"github.com/spec-context/specctxd/internal/tools/search"
	"github.com/spec-context/specctxd/internal/toolshell"
	"github.com/spec-context/specctxd/internal/visibility"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "specctxd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := ""
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	projectPath := cfg.Workflow.Home
	if projectPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectPath = cwd
		}
	}

	logger.Info("starting spec-context",
		"version", version,
		"project_path", projectPath,
		"transport", cfg.Transport.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := mcp.NewRegistry()
	visReg := visibility.NewRegistry()
	gate := visibility.NewGate(visReg)

	provider := steering.NewProvider("", "")
	runtime := dispatch.NewRuntime()
	runtime.Guides = provider

	off := toolshell.NewOffloader()
	if cfg.ToolShell.OffloadThresholdChars > 0 {
		off.Threshold = cfg.ToolShell.OffloadThresholdChars
	}
	if cfg.ToolShell.OffloadTTLMinutes > 0 {
		off.TTL = time.Duration(cfg.ToolShell.OffloadTTLMinutes) * time.Minute
	}

	registerTools(registry, registerDeps{
		runtime:     runtime,
		guides:      provider,
		projectPath: projectPath,
		dashboard:   cfg.Workflow.DashboardURL,
		offloader:   off,
	})

	if err := startSweepScheduler(ctx, projectPath, off.TTL, logger); err != nil {
		return fmt.Errorf("starting tool-results sweep scheduler: %w", err)
	}

	if cfg.Chat.RedisEventsURL != "" {
		if err := buildChatEngine(cfg, logger); err != nil {
			logger.Warn("chat event sink disabled", "error", err)
		}
	}

	server := mcp.NewServer(registry, mcp.ServerInfo{Name: cfg.Server.Name, Version: version}, logger).
		WithVisibility(gate)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}
	return nil
}

type registerDeps struct {
	runtime     *dispatch.Runtime
	guides      *steering.Provider
	projectPath string
	dashboard   string
	offloader   *toolshell.Offloader
}

// registerTools wires every MCP tool named in SPEC_FULL.md §9, wrapping
// each in toolshell.OffloadingTool so oversized results are swept to disk
// instead of returned inline.
func registerTools(registry *mcp.Registry, deps registerDeps) {
	store := approvals.NewStore(deps.projectPath)
	bridge := approvals.NewBridge(deps.dashboard, store)
	index := search.NewLocalIndex(deps.projectPath)

	plain := []mcp.Tool{
		guides.WorkflowGuide(deps.guides),
		guides.SteeringGuide(deps.guides),
		guides.BrainstormGuide(deps.guides),
		guides.ImplementerGuide(deps.guides),
		guides.ReviewerGuide(deps.guides),
		guides.NewSpecStatus(),
		search.NewSearch(index),
		search.NewCodeResearch(index),
		approvals.NewTool(store),
		approvals.NewWaitTool(bridge),
		dispatchtool.NewDispatchRuntime(deps.runtime, deps.guides),
	}

	for _, t := range plain {
		registry.Register(toolshell.NewOffloadingTool(t, deps.offloader, deps.projectPath, deps.dashboard))
	}
}

// startSweepScheduler registers the proactive tool-results offload sweep
// on a cron cadence of ttl/2 (floored at one minute), supplementing the
// synchronous pre-write sweep OffloadingTool already performs on every
// tool call.
func startSweepScheduler(ctx context.Context, projectPath string, ttl time.Duration, logger *slog.Logger) error {
	shellCtx := toolshell.NewContext(projectPath, "", nil)
	job := toolshell.NewSweepJob(shellCtx.ResultsDir(), ttl, logger)

	cronSched := toolshell.NewCronScheduler(logger)
	if err := cronSched.ScheduleSweep(ctx, job); err != nil {
		return err
	}
	cronSched.Start()

	go func() {
		<-ctx.Done()
		cronSched.Stop()
	}()
	return nil
}

// buildChatEngine validates the configured chat provider, Redis event
// sink, and OpenTelemetry meter eagerly at startup. The actual chat
// round-trip is driven by whichever process sends the compiled dispatch
// prompt to the model (the dispatch_cli route compile_prompt hands
// back), not by this process, so nothing built here is ever sent a
// request — this function exists solely to fail fast on misconfiguration.
func buildChatEngine(cfg *config.Config, logger *slog.Logger) error {
	opts, err := redis.ParseURL(cfg.Chat.RedisEventsURL)
	if err != nil {
		return fmt.Errorf("parsing redis_events_url: %w", err)
	}
	client := redis.NewClient(opts)

	var provider chat.Provider
	switch {
	case cfg.Chat.AnthropicAPIKey != "":
		provider = chat.NewAnthropicProvider(cfg.Chat.AnthropicAPIKey, cfg.Chat.AnthropicBaseURL)
	case cfg.Chat.OpenAIAPIKey != "":
		provider = chat.NewOpenAIProvider(cfg.Chat.OpenAIAPIKey, cfg.Chat.OpenAIBaseURL)
	default:
		return fmt.Errorf("no chat provider configured")
	}

	meterProvider := sdkmetric.NewMeterProvider()
	if _, err := chat.NewTelemetry(meterProvider.Meter("spec-context/chat")); err != nil {
		return fmt.Errorf("building chat telemetry meter: %w", err)
	}
	_ = chat.NewEventEmitter(chat.NewRedisStreamSink(client, "spec-context:chat-events"))

	logger.Info("chat engine ready", "provider", provider.Name(), "redis_events_url", cfg.Chat.RedisEventsURL)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
