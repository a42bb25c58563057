// reqpilot is an interactive requirements-gathering assistant: it chats with
// the user, tracks requirement completeness, and generates a requirements
// document once enough information has been collected.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"reqpilot/pkg/agent"
	"reqpilot/pkg/assistant"
	"reqpilot/pkg/config"
	"reqpilot/pkg/logx"
	"reqpilot/pkg/metrics"
	"reqpilot/pkg/persistence"
	"reqpilot/pkg/srs"
	"reqpilot/pkg/utils"
)

func main() {
	var (
		configPath  = flag.String("config", "reqpilot.yaml", "Path to config file")
		sessionID   = flag.String("session", "", "Resume an existing session id")
		userID      = flag.String("user", "local", "User id recorded on the session")
		resetFlag   = flag.Bool("reset", false, "Reset the session before starting")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	if err := run(*configPath, *sessionID, *userID, *metricsAddr, *resetFlag); err != nil {
		fmt.Fprintf(os.Stderr, "reqpilot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, sessionID, userID, metricsAddr string, reset bool) error {
	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	logger := logx.NewLogger("main")

	client, err := agent.NewClient(&cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	logger.Info("using model %s", client.GetModelName())

	store, err := persistence.NewStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	tokens, err := utils.NewTokenCounter()
	if err != nil {
		logger.Warn("tokenizer unavailable, using character estimates: %v", err)
	}

	var search srs.SearchTool
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		search = srs.NewTavilyClient(key)
	} else {
		logger.Info("TAVILY_API_KEY not set, document research stage disabled")
	}

	pipeline := srs.NewPipeline(cfg, client, search, tokens)
	driver := assistant.NewDriver(cfg, client, pipeline, nil)

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	var usage *metrics.QueryService
	if cfg.PrometheusURL != "" {
		usage, err = metrics.NewQueryService(cfg.PrometheusURL)
		if err != nil {
			logger.Warn("metrics query service unavailable: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sessionID == "" {
		sessionID = uuid.NewString()
		logger.Info("starting new session %s", sessionID)
	}

	var state *assistant.State
	if reset {
		state, err = store.Reset(ctx, sessionID, userID)
		if err != nil {
			return err
		}
	} else {
		state, err = store.Load(ctx, sessionID)
		if errors.Is(err, persistence.ErrSessionNotFound) {
			state = nil
		} else if err != nil {
			return err
		}
	}

	return chatLoop(ctx, driver, store, usage, sessionID, userID, state)
}

func serveMetrics(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped: %v", err)
	}
}

func chatLoop(ctx context.Context, driver *assistant.Driver, store *persistence.Store, usage *metrics.QueryService, sessionID, userID string, state *assistant.State) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("reqpilot — describe the software you want to build. Commands: /reset, /export <file>, /usage, /quit")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, store, usage, sessionID, userID, &state, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		reply, next, err := driver.ProcessTurn(ctx, sessionID, userID, line, state)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		state = next

		if err := store.Save(ctx, state); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to persist session: %v\n", err)
		}

		fmt.Printf("\n%s\n\n", reply)
	}
}

// handleCommand processes a slash command. Returns true when the loop should
// exit.
func handleCommand(ctx context.Context, store *persistence.Store, usage *metrics.QueryService, sessionID, userID string, state **assistant.State, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/reset":
		fresh, err := store.Reset(ctx, sessionID, userID)
		if err != nil {
			return false, err
		}
		*state = fresh
		fmt.Println("session reset")
		return false, nil

	case "/export":
		if *state == nil || !(*state).HasDocument() {
			return false, fmt.Errorf("no document generated yet")
		}
		path := "requirements.md"
		if len(fields) > 1 {
			path = fields[1]
		}
		if err := os.WriteFile(path, []byte((*state).Document), 0o644); err != nil {
			return false, fmt.Errorf("failed to export document: %w", err)
		}
		fmt.Printf("document written to %s\n", path)
		return false, nil

	case "/usage":
		if usage == nil {
			return false, fmt.Errorf("prometheus_url not configured")
		}
		m, err := usage.GetSessionMetrics(ctx, sessionID)
		if err != nil {
			return false, err
		}
		fmt.Printf("tokens used this session: %d prompt, %d completion, %d total\n",
			m.PromptTokens, m.CompletionTokens, m.TotalTokens)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}
