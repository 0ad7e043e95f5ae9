package main

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/journal"
	"github.com/kir-gadjello/ant-router/pkg/logger"
	"github.com/kir-gadjello/ant-router/pkg/observability"
	"github.com/kir-gadjello/ant-router/pkg/ratelimit"
	"github.com/kir-gadjello/ant-router/pkg/server"
	"github.com/kir-gadjello/ant-router/pkg/upstream"
	"github.com/kir-gadjello/ant-router/pkg/utils"
)

//go:embed config.default.yaml
var defaultConfigYAML []byte

// CLI is the kong-declared flag surface, per SPEC_FULL.md §4.8. Every flag
// here can be overridden by an environment variable of higher precedence -
// see resolveSettings.
type CLI struct {
	Config      string `short:"c" type:"path" help:"Path to the proxy's YAML config file."`
	Host        string `help:"Override server.host."`
	Port        int    `help:"Override server.port."`
	Profile     string `short:"P" name:"profile" help:"Override the active routing profile."`
	Verbose     bool   `short:"v" help:"Force debug-level logging."`
	ToolVerbose bool   `short:"t" name:"tool-verbose" help:"Log full tool-call arguments at debug level."`
	Version     bool   `help:"Print version information and exit."`
}

// Version is set at build time via -ldflags "-X main.Version=...". Falls
// back to the module version embedded by the Go toolchain, then "dev",
// matching the pack's runtime/debug.ReadBuildInfo idiom.
var Version = ""

func resolveVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("ant-router"),
		kong.Description("Anthropic<->OpenAI protocol-translating reverse proxy."),
		kong.UsageOnError(),
	)

	if cli.Version {
		fmt.Printf("ant-router version %s\n", resolveVersion())
		os.Exit(0)
	}

	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("failed loading .env files", "error", err)
	}

	level := slog.LevelInfo
	if cli.Verbose || cli.ToolVerbose || os.Getenv("DEBUG") == "1" {
		level = slog.LevelDebug
	}
	logger.Init(level, os.Stderr, "simple")

	if err := run(cli); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// settings holds the fully resolved, precedence-applied bootstrap knobs:
// env var overrides CLI flag overrides config-file value overrides
// built-in default (§4.8).
type settings struct {
	configPath string
	host       string
	port       int
	profile    string
}

func resolveSettings(cli CLI) settings {
	s := settings{
		configPath: cli.Config,
		host:       cli.Host,
		port:       cli.Port,
		profile:    cli.Profile,
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		s.configPath = v
	}
	if v := os.Getenv("PROFILE"); v != "" {
		s.profile = v
	}
	if v := os.Getenv("HOST"); v != "" {
		s.host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			s.port = p
		}
	}
	return s
}

func run(cli CLI) error {
	set := resolveSettings(cli)

	cfg, err := loadOrBootstrapConfig(set.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if set.host != "" {
		cfg.Server.Host = set.host
	}
	if set.port != 0 {
		cfg.Server.Port = set.port
	}
	if set.profile != "" {
		cfg.CurrentProfile = set.profile
	}

	baseURLOverride := os.Getenv("ANTHROPIC_PROXY_BASE_URL")
	if baseURLOverride != "" {
		cfg.Upstream.BaseURL = baseURLOverride
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if baseURLOverride == "" && cfg.Upstream.APIKeyEnvVar != "" && os.Getenv(cfg.Upstream.APIKeyEnvVar) == "" {
		slog.Warn("upstream API key environment variable is unset", "env_var", cfg.Upstream.APIKeyEnvVar)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	obs, err := observability.NewManager(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	tracer := obs.Tracer()
	if tracer == nil {
		tracer = observability.NoopTracer{}
	}
	metrics := obs.Metrics()
	var recorder observability.Recorder = metrics
	if metrics == nil {
		recorder = observability.NoopMetrics{}
	}
	executor := upstream.New(tracer, recorder)

	rateLimiter, err := ratelimit.NewRateLimiterFromConfig(cfg.RateLimiting)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	jrnl := journal.New("logs/.log.jsonl", cfg.TraceFile, cfg.Record, resolveVersion())

	srv := server.New(cfg, obs, executor, rateLimiter, jrnl, resolveVersion())

	slog.Info("starting ant-router", "address", srv.Address(), "profile", cfg.CurrentProfile, "version", resolveVersion())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadOrBootstrapConfig implements §4.8's first-run onboarding: an empty
// path falls back to config.DefaultConfigPath(), and the resolved path is
// loaded when it exists. When it does not exist (explicit or default path
// alike), the embedded starter config is offered for writing at that path
// when stdin is a terminal; otherwise the proxy proceeds with empty
// defaults and a warning.
func loadOrBootstrapConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, _, err := config.LoadConfigFile(context.Background(), path)
			if err != nil {
				return nil, err
			}
			slog.Info("loaded configuration", "path", path)
			return cfg, nil
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	if path != "" && isInteractiveTerminal() && promptYesNo(fmt.Sprintf("No config found. Write a starter config to %s? [Y/n] ", path)) {
		if err := writeDefaultConfig(path); err != nil {
			return nil, err
		}
		cfg, _, err := config.LoadConfigFile(context.Background(), path)
		if err != nil {
			return nil, err
		}
		slog.Info("wrote and loaded starter configuration", "path", path)
		return cfg, nil
	}

	slog.Warn("no configuration file found, proceeding with empty defaults")
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg, nil
}

func writeDefaultConfig(path string) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, defaultConfigYAML, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	slog.Info("wrote starter config", "path", path)
	return nil
}

func isInteractiveTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func promptYesNo(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return isAffirmative(line)
}

// isAffirmative reports whether a prompt response counts as "yes": an
// empty line (the default) or any case-insensitive spelling of y/yes.
func isAffirmative(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "" || line == "y" || line == "yes"
}
