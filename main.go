package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prt-busca/prt-busca/internal/cli"
	"github.com/prt-busca/prt-busca/internal/config"
	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
	"github.com/sirupsen/logrus"
	urfavecli "github.com/urfave/cli/v3"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Using atomic operations to prevent races between signal handlers and cleanup
var (
	logFile     atomic.Pointer[os.File]
	isStdioMode atomic.Bool
)

const (
	// DefaultMemoryLimit is the default memory limit for the Go application (2GB)
	DefaultMemoryLimit = 2 * 1024 * 1024 * 1024

	logFileName = "prt-busca.log"
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the appropriate logrus level.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime memory limit
func setMemoryLimit() {
	var memLimit int64 = DefaultMemoryLimit
	if memLimitStr := os.Getenv("PRT_BUSCA_MEMORY_LIMIT"); memLimitStr != "" {
		if parsed, err := strconv.ParseInt(memLimitStr, 10, 64); err == nil && parsed > 0 {
			memLimit = parsed
		}
	}
	debug.SetMemoryLimit(memLimit)
}

// configureLogging points the logger at a file in stdio mode, where stdout
// carries the protocol, and at stderr otherwise.
func configureLogging(logger *logrus.Logger, logDir string, stdio bool) {
	isStdioMode.Store(stdio)
	level := parseLogLevel()
	logger.SetLevel(level)

	if !stdio {
		logger.SetOutput(os.Stderr)
		return
	}

	if err := os.MkdirAll(logDir, 0700); err != nil {
		logger.SetOutput(io.Discard)
		return
	}
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger.SetOutput(io.Discard)
		return
	}
	logFile.Store(file)
	logger.SetOutput(file)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(a *app, logger *logrus.Logger) {
	if a != nil {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release resources")
		}
	}
	// Silently close, the logger might still write to this file
	if file := logFile.Swap(nil); file != nil {
		_ = file.Close()
	}
}

// bootstrap loads configuration, sets up logging and builds the application
func bootstrap(cmd *urfavecli.Command, logger *logrus.Logger, stdio bool, switches stageSwitches) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		configureLogging(logger, "", false)
		return nil, err
	}
	configureLogging(logger, cfg.LogDir(), stdio)

	return newApp(cfg, logger, switches)
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until the transport mode is known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cmd := &urfavecli.Command{
		Name:    "prt-busca",
		Usage:   "Multi-provider web search, deep navigation and lead extraction",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []urfavecli.Flag{
			&urfavecli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				Sources: urfavecli.EnvVars(config.ConfigPathEnvVar),
			},
		},
		Commands: []*urfavecli.Command{
			versionCommand(),
			searchCommand(logger),
			interleavedCommand(logger),
			providersCommand(logger),
			sessionCommand(logger),
			toolsCommand(logger),
		},
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			return serveStdio(cmd, logger)
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		// stdout and stderr belong to the protocol in stdio mode
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// serveStdio registers every enabled tool on an MCP server and serves it over stdio
func serveStdio(cmd *urfavecli.Command, logger *logrus.Logger) error {
	a, err := bootstrap(cmd, logger, true, stageSwitches{})
	defer performCleanup(a, logger)
	if err != nil {
		return err
	}

	mcpSrv := mcpserver.NewMCPServer("prt-busca", Version)
	registered := a.registry.Tools()
	logger.WithField("tool_count", len(registered)).Debug("MCP server created, registering tools")

	for _, tool := range registered {
		name := tool.Definition().Name
		mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			current, ok := a.registry.Get(name)
			if !ok {
				return nil, fmt.Errorf("tool not found: %s", name)
			}

			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
			}

			result, err := current.Execute(toolCtx, a.registry.Logger(), a.registry.Cache(), args)
			if err != nil {
				logger.WithError(err).WithField("tool", name).Warn("Tool execution failed")
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}
			return result, nil
		})
	}

	logger.Debug("Starting stdio server")
	return mcpserver.ServeStdio(mcpSrv)
}

func outputFlag() urfavecli.Flag {
	return &urfavecli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   string(cli.OutputText),
		Usage:   "Output format (text or json)",
	}
}

func newRunner(cmd *urfavecli.Command, a *app) (*cli.Runner, error) {
	format, err := cli.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return nil, err
	}
	return cli.NewRunner(a.registry, a.logger, format, os.Stdout), nil
}

func versionCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			fmt.Printf("prt-busca version %s\n", Version)
			fmt.Printf("Commit: %s\n", Commit)
			fmt.Printf("Built: %s\n", BuildDate)
			return nil
		},
	}
}

func searchCommand(logger *logrus.Logger) *urfavecli.Command {
	return &urfavecli.Command{
		Name:      "search",
		Usage:     "Run a massive search: providers, deep navigation, social content and leads",
		ArgsUsage: "<query>",
		Flags: []urfavecli.Flag{
			&urfavecli.StringFlag{Name: "session", Usage: "Session id (generated when empty)"},
			&urfavecli.StringFlag{Name: "segmento", Usage: "Market segment"},
			&urfavecli.StringFlag{Name: "produto", Usage: "Product or service"},
			&urfavecli.StringFlag{Name: "publico", Usage: "Target audience"},
			&urfavecli.StringSliceFlag{Name: "context", Usage: "Extra market context as key=value (repeatable)"},
			&urfavecli.BoolFlag{Name: "no-nav", Usage: "Skip deep navigation"},
			&urfavecli.BoolFlag{Name: "no-social", Usage: "Skip social extraction"},
			outputFlag(),
		},
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if query == "" {
				return fmt.Errorf("a query is required")
			}
			searchContext, err := searchContextFromFlags(cmd)
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd, logger, false, stageSwitches{
				noNavigation: cmd.Bool("no-nav"),
				noSocial:     cmd.Bool("no-social"),
			})
			defer performCleanup(a, logger)
			if err != nil {
				return err
			}
			runner, err := newRunner(cmd, a)
			if err != nil {
				return err
			}

			sessionID := cmd.String("session")
			if sessionID == "" {
				sessionID = massivesearch.NewSessionID()
			}
			result := a.aggregator.Run(ctx, massivesearch.Request{
				Query:     query,
				SessionID: sessionID,
				Context:   searchContext,
			})

			if err := a.store.SaveResult(result.SessionID, result); err != nil {
				logger.WithError(err).WithField("session_id", result.SessionID).Warn("Failed to save massive search result")
			}
			return runner.RenderMassive(result)
		},
	}
}

// searchContextFromFlags combines the named context flags with --context pairs
func searchContextFromFlags(cmd *urfavecli.Command) (massivesearch.SearchContext, error) {
	extra, err := massivesearch.ParseContextPairs(cmd.StringSlice("context"))
	if err != nil {
		return massivesearch.SearchContext{}, err
	}
	return massivesearch.SearchContext{
		Segmento: strings.TrimSpace(cmd.String("segmento")),
		Produto:  strings.TrimSpace(cmd.String("produto")),
		Publico:  strings.TrimSpace(cmd.String("publico")),
	}.Merge(extra), nil
}

func interleavedCommand(logger *logrus.Logger) *urfavecli.Command {
	return &urfavecli.Command{
		Name:      "interleaved",
		Usage:     "Query every configured provider once and merge the results",
		ArgsUsage: "<query>",
		Flags:     []urfavecli.Flag{outputFlag()},
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if query == "" {
				return fmt.Errorf("a query is required")
			}

			a, err := bootstrap(cmd, logger, false, stageSwitches{noNavigation: true, noSocial: true})
			defer performCleanup(a, logger)
			if err != nil {
				return err
			}
			runner, err := newRunner(cmd, a)
			if err != nil {
				return err
			}
			return runner.RenderOutcome(a.coordinator.Search(ctx, logger, query))
		},
	}
}

func providersCommand(logger *logrus.Logger) *urfavecli.Command {
	return &urfavecli.Command{
		Name:  "providers",
		Usage: "List configured search providers and their key counts",
		Flags: []urfavecli.Flag{outputFlag()},
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			a, err := bootstrap(cmd, logger, false, stageSwitches{noNavigation: true, noSocial: true})
			defer performCleanup(a, logger)
			if err != nil {
				return err
			}
			runner, err := newRunner(cmd, a)
			if err != nil {
				return err
			}
			return runner.RenderProviders(unified.ProviderReport(a.pool))
		},
	}
}

func sessionCommand(logger *logrus.Logger) *urfavecli.Command {
	return &urfavecli.Command{
		Name:  "session",
		Usage: "Inspect stored sessions",
		Commands: []*urfavecli.Command{
			{
				Name:      "show",
				Usage:     "Show the saved massive search result of a session",
				ArgsUsage: "<session-id>",
				Flags:     []urfavecli.Flag{outputFlag()},
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					a, err := bootstrap(cmd, logger, false, stageSwitches{noNavigation: true, noSocial: true})
					defer performCleanup(a, logger)
					if err != nil {
						return err
					}
					runner, err := newRunner(cmd, a)
					if err != nil {
						return err
					}

					var result massivesearch.Result
					if err := a.store.LoadResult(cmd.Args().First(), &result); err != nil {
						return fmt.Errorf("failed to load session: %w", err)
					}
					return runner.RenderMassive(&result)
				},
			},
			{
				Name:      "progress",
				Usage:     "Show the last progress update of a session",
				ArgsUsage: "<session-id>",
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					a, err := bootstrap(cmd, logger, false, stageSwitches{noNavigation: true, noSocial: true})
					defer performCleanup(a, logger)
					if err != nil {
						return err
					}

					progress, err := a.store.Progress(cmd.Args().First())
					if err != nil {
						return fmt.Errorf("failed to load progress: %w", err)
					}
					fmt.Printf("%s: step %d/%d (%.0f%%) %s\n", progress.SessionID, progress.Step, progress.TotalSteps, progress.Percentage, progress.Message)
					return nil
				},
			},
			{
				Name:      "leads",
				Usage:     "List leads saved for a session",
				ArgsUsage: "<session-id>",
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					a, err := bootstrap(cmd, logger, false, stageSwitches{noNavigation: true, noSocial: true})
					defer performCleanup(a, logger)
					if err != nil {
						return err
					}
					if a.leadStore == nil {
						return fmt.Errorf("lead database is not available")
					}

					found, err := a.leadStore.List(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					for _, lead := range found {
						fmt.Printf("%s\t%s\t%s\t%s\n", lead.Name, lead.Email, lead.Phone, lead.SourceURL)
					}
					return nil
				},
			},
		},
	}
}

func toolsCommand(logger *logrus.Logger) *urfavecli.Command {
	return &urfavecli.Command{
		Name:  "tools",
		Usage: "List, describe and run registered tools without an MCP client",
		Commands: []*urfavecli.Command{
			{
				Name:  "list",
				Usage: "List registered tools",
				Flags: []urfavecli.Flag{outputFlag()},
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					return withRunner(cmd, logger, func(r *cli.Runner) error { return r.ListTools() })
				},
			},
			{
				Name:      "help",
				Usage:     "Show a tool's parameters and examples",
				ArgsUsage: "<tool>",
				Flags:     []urfavecli.Flag{outputFlag()},
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					return withRunner(cmd, logger, func(r *cli.Runner) error { return r.HelpTool(cmd.Args().First()) })
				},
			},
			{
				Name:            "run",
				Usage:           "Run a tool, passing parameters as --flags",
				ArgsUsage:       "<tool> [--param value ...]",
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					args := cmd.Args().Slice()
					if len(args) == 0 {
						return fmt.Errorf("a tool name is required")
					}
					return withRunner(cmd, logger, func(r *cli.Runner) error { return r.RunTool(ctx, args[0], args[1:]) })
				},
			},
		},
	}
}

func withRunner(cmd *urfavecli.Command, logger *logrus.Logger, fn func(*cli.Runner) error) error {
	a, err := bootstrap(cmd, logger, false, stageSwitches{})
	defer performCleanup(a, logger)
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, a)
	if err != nil {
		return err
	}
	return fn(runner)
}
