package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"api-chain/internal/catalog"
	"api-chain/internal/chain"
	"api-chain/internal/config"
	"api-chain/internal/logging"
	"api-chain/internal/model"
	"api-chain/internal/render"
	"api-chain/internal/server"
	"api-chain/internal/util"
)

// Define common errors for the application layer.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrNoChain        = errors.New("no 'chain' section found in config")
)

// --- Interfaces for Testability ---

// configLoader defines the interface for loading configuration.
type configLoader interface {
	Load(filename string) (*config.Config, error)
}

// chainRunner executes a chain and returns the executed copy.
type chainRunner interface {
	Run(ctx context.Context, c model.Chain) (model.Chain, error)
}

// chainRunnerFactory creates the runner for a configuration.
type chainRunnerFactory interface {
	New(cfg *config.Config) chainRunner
}

// apiServer serves the builder API until its context is cancelled.
type apiServer interface {
	ListenAndServe(ctx context.Context, addr string) error
}

// serverFactory creates the builder API around a session.
type serverFactory interface {
	New(session *chain.Session, cat *catalog.Catalog) apiServer
}

// --- Default Implementations ---

type defaultConfigLoader struct{}

func (l *defaultConfigLoader) Load(filename string) (*config.Config, error) {
	return config.LoadConfig(filename)
}

type defaultChainRunnerFactory struct{}

func (f *defaultChainRunnerFactory) New(cfg *config.Config) chainRunner {
	return chain.NewRunner(cfg)
}

type defaultServerFactory struct{}

func (f *defaultServerFactory) New(session *chain.Session, cat *catalog.Catalog) apiServer {
	return server.New(session, cat)
}

// --- AppRunner ---

// AppRunner encapsulates the application's execution logic and dependencies.
type AppRunner struct {
	configLoader       configLoader
	chainRunnerFactory chainRunnerFactory
	serverFactory      serverFactory
	stdout             io.Writer
	stderr             io.Writer
}

// AppRunnerOpts allows configuring the AppRunner's dependencies.
type AppRunnerOpts struct {
	ConfigLoader       configLoader
	ChainRunnerFactory chainRunnerFactory
	ServerFactory      serverFactory
	Stdout             io.Writer
	Stderr             io.Writer
}

// NewAppRunner creates a new instance of the application runner with default dependencies.
func NewAppRunner() *AppRunner {
	return NewAppRunnerWithOpts(AppRunnerOpts{})
}

// NewAppRunnerWithOpts creates a new AppRunner allowing dependency injection.
func NewAppRunnerWithOpts(opts AppRunnerOpts) *AppRunner {
	a := &AppRunner{
		configLoader:       opts.ConfigLoader,
		chainRunnerFactory: opts.ChainRunnerFactory,
		serverFactory:      opts.ServerFactory,
		stdout:             opts.Stdout,
		stderr:             opts.Stderr,
	}
	if a.configLoader == nil {
		a.configLoader = &defaultConfigLoader{}
	}
	if a.chainRunnerFactory == nil {
		a.chainRunnerFactory = &defaultChainRunnerFactory{}
	}
	if a.serverFactory == nil {
		a.serverFactory = &defaultServerFactory{}
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	return a
}

// usageText defines the command-line help information.
const usageText = `Usage:
  api-chain [options]

Options:
  -config string
        YAML configuration file (default "chain.yaml")
  -serve
        Serve the chain builder API instead of running the chain once
  -addr string
        Listen address for -serve (default ":8080")
  -output string
        Write the executed chain as JSON to this file (overrides chain.output.file)
  -loglevel string
        Logging level (none, error, warn, info, debug) (default "info")
  -help
        Show help

Examples:
  Run a chain:
    api-chain -config=chain.yaml -output=result.json

  Build chains interactively:
    api-chain -config=chain.yaml -serve -addr=:9090
`

// Usage prints the command-line help information to writer.
func (a *AppRunner) Usage(writer io.Writer) {
	fmt.Fprint(writer, usageText)
}

// Run parses command-line arguments and either executes the configured chain
// once or serves the builder API until ctx is cancelled.
func (a *AppRunner) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("api-chain", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configFile := fs.String("config", "chain.yaml", "YAML configuration file")
	serveMode := fs.Bool("serve", false, "Serve the chain builder API")
	addr := fs.String("addr", ":8080", "Listen address for -serve")
	outputFile := fs.String("output", "", "Write the executed chain as JSON to this file")
	logLevelStr := fs.String("loglevel", "info", "Logging level (none, error, warn, info, debug)")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(a.stderr)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", ErrUsage, fs.Args())
	}

	if *helpFlag || len(args) == 0 {
		a.Usage(a.stderr)
		return nil
	}

	logLevel := logging.SetupLogging(*logLevelStr)

	cfg, err := a.loadConfig(*configFile, *serveMode)
	if err != nil {
		return err
	}

	if !isFlagSet(fs, "loglevel") && cfg.Logging.Level != "" {
		logLevel = logging.SetupLogging(cfg.Logging.Level)
	}
	logging.SetLevel(logLevel)

	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return err
	}

	if *serveMode {
		return a.runServeMode(ctx, cfg, cat, *addr)
	}

	if cfg.Chain == nil {
		return fmt.Errorf("%w '%s'", ErrNoChain, *configFile)
	}
	output := *outputFile
	if output == "" && cfg.Chain.Output != nil {
		output = cfg.Chain.Output.File
	}
	return a.runChainMode(ctx, cfg, cat, util.ExpandEnvUniversal(output))
}

// loadConfig stats and loads the configuration. In serve mode a missing file
// is not an error: the builder starts from the default catalog and an empty chain.
func (a *AppRunner) loadConfig(configFile string, serveMode bool) (*config.Config, error) {
	if _, err := os.Stat(configFile); err != nil {
		if os.IsNotExist(err) {
			if serveMode {
				logging.Logf(logging.Warning, "Configuration file '%s' not found, using the default catalog.", configFile)
				return config.Default(), nil
			}
			log.Printf("[ERROR] Configuration file '%s' not found.", configFile)
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", configFile, err)
	}

	cfg, err := a.configLoader.Load(configFile)
	if err != nil {
		log.Printf("[ERROR] Error loading configuration '%s': %v", configFile, err)
		return nil, err
	}
	return cfg, nil
}

// Helper to check if a specific flag was set
func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// runChainMode executes the configured chain once, prints it and optionally
// writes the executed chain to outputFile. Nothing is printed or written when
// any step fails.
func (a *AppRunner) runChainMode(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, outputFile string) error {
	c, err := chain.FromConfig(cfg.Chain, cat)
	if err != nil {
		return fmt.Errorf("failed to build chain: %w", err)
	}

	logging.Logf(logging.Info, "Executing chain with %d step(s)...", len(c))
	runner := a.chainRunnerFactory.New(cfg)
	result, err := runner.Run(ctx, c)
	if err != nil {
		logging.Logf(logging.Error, "Chain execution failed: %v", err)
		return err
	}

	if err := render.Chain(a.stdout, result); err != nil {
		return fmt.Errorf("failed to print chain: %w", err)
	}

	if outputFile == "" {
		return nil
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chain result: %w", err)
	}
	if err := os.WriteFile(outputFile, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write output file '%s': %w", outputFile, err)
	}
	logging.Logf(logging.Info, "Chain result written to %s", outputFile)
	return nil
}

// runServeMode serves the builder API, starting from the configured chain if any.
func (a *AppRunner) runServeMode(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, addr string) error {
	initial, err := chain.FromConfig(cfg.Chain, cat)
	if err != nil {
		return fmt.Errorf("failed to build chain: %w", err)
	}
	session := chain.NewSession(a.chainRunnerFactory.New(cfg), initial)
	return a.serverFactory.New(session, cat).ListenAndServe(ctx, addr)
}
