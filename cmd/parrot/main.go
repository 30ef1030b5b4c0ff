package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"parrot-ai/internal/adapter/llm"
	"parrot-ai/internal/adapter/store"
	"parrot-ai/internal/adapter/tool"
	"parrot-ai/internal/domain"
	"parrot-ai/internal/infra/config"
	"parrot-ai/internal/infra/logger"
	"parrot-ai/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runChat(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat()
	case "sessions":
		err = runSessions()
	case "export":
		err = runExport(os.Args[2:])
	case "rename":
		err = runRename(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "clear":
		err = runClear(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'parrot --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`parrot - streaming chat assistant with web search

USAGE:
    parrot [COMMAND] [FLAGS]

COMMANDS:
    chat                 Start an interactive chat (default)
    sessions             List saved sessions, most recent first
    export NAME          Print a saved chat as markdown
    rename OLD NEW       Rename a saved chat (unique suffix is kept)
    delete NAME          Delete a saved chat and its session log
    clear SESSION_ID     Empty a session log, keeping the session

FLAGS:
    -h, --help           Show this help message
    --config PATH        Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: PARROT_* variables override config

EXAMPLES:
    parrot                       # Chat with config.yaml defaults
    parrot --config /etc/parrot.yaml
    PARROT_LLM_API_KEY=sk-... parrot
    parrot sessions
    parrot export "Trip Plan_01H..."`)
}

// configPath extracts --config from the arguments, defaulting to ./config.yaml.
func configPath() string {
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(os.Args[i], "--config=") {
			return strings.TrimPrefix(os.Args[i], "--config=")
		}
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, nil, err
	}

	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closer, nil
}

// engine bundles everything a chat session needs.
type engine struct {
	orch     *usecase.Orchestrator
	legacy   *store.LegacyStore
	sessions *store.SessionLogStore
	mode     domain.ChatMode
	greeting string
	log      *slog.Logger
}

func buildEngine(cfg *config.Config, log *slog.Logger) (*engine, error) {
	mode, err := domain.ParseChatMode(cfg.Engine.Mode)
	if err != nil {
		return nil, err
	}

	providerName := cfg.LLM.DefaultProvider
	if alt := mode.Spec().Provider; alt != "" {
		providerName = alt
	}
	pcfg := cfg.Provider(providerName)

	var provider domain.StreamingLLMProvider = llm.NewOpenAIProvider(pcfg, log)
	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}

	registry := tool.NewRegistry(log)
	backend, err := searchBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	limiter := tool.NewRateLimiter(cfg.Tools.SearchRateLimit, cfg.Tools.SearchRateWindow)
	if err := registry.Register(tool.NewSearchTool(backend, limiter, cfg.Tools.SearchCacheTTL, log)); err != nil {
		return nil, err
	}

	legacy := store.NewLegacyStore(cfg.Store.DataDir, log)
	sessions := store.NewSessionLogStore(cfg.Store.DataDir, log)
	builder := usecase.NewContextWindowBuilder(cfg.Engine.Presets)

	orch := usecase.NewOrchestrator(
		provider, registry, builder, legacy, sessions,
		pcfg.Model, cfg.Engine.MaxTokens, cfg.Engine.StreamChunkTimeout, log,
	)

	return &engine{
		orch:     orch,
		legacy:   legacy,
		sessions: sessions,
		mode:     mode,
		greeting: cfg.Engine.Greeting,
		log:      log,
	}, nil
}

func searchBackend(cfg *config.Config, log *slog.Logger) (tool.SearchBackend, error) {
	switch cfg.Tools.SearchBackend {
	case "serper":
		return tool.NewSerperBackend(cfg.Tools.SerperAPIKey, log), nil
	case "searxng":
		return tool.NewSearXNGBackend(cfg.Tools.SearXNGURL, log), nil
	}
	return nil, fmt.Errorf("unknown search backend %q", cfg.Tools.SearchBackend)
}

func runSessions() error {
	cfg, log, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	sessions := store.NewSessionLogStore(cfg.Store.DataDir, log)
	infos := sessions.Sessions()
	if len(infos) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%s  %-33s %3d messages  %s\n",
			info.ID, info.Title, info.MessageCount,
			info.LastUpdated.Format(time.RFC3339))
	}
	return nil
}

func runExport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parrot export NAME")
	}
	cfg, log, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	legacy := store.NewLegacyStore(cfg.Store.DataDir, log)
	rec := legacy.Load(args[0])
	conv := usecase.Conversation{Name: args[0], History: rec.History}
	fmt.Print(conv.ExportMarkdown())
	return nil
}

func runRename(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: parrot rename OLD NEW")
	}
	cfg, log, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	legacy := store.NewLegacyStore(cfg.Store.DataDir, log)
	newName, err := legacy.Rename(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("renamed to %s\n", newName)
	return nil
}

func runDelete(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parrot delete NAME")
	}
	cfg, log, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	legacy := store.NewLegacyStore(cfg.Store.DataDir, log)
	return legacy.Delete(args[0])
}

func runClear(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parrot clear SESSION_ID")
	}
	cfg, log, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	sessions := store.NewSessionLogStore(cfg.Store.DataDir, log)
	return sessions.Clear(args[0])
}
