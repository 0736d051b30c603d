package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kuksa/vssbroker/internal/audit"
	"github.com/kuksa/vssbroker/internal/auth"
	"github.com/kuksa/vssbroker/internal/config"
	coredb "github.com/kuksa/vssbroker/internal/core/db"
	"github.com/kuksa/vssbroker/internal/protocol"
	"github.com/kuksa/vssbroker/internal/server"
	"github.com/kuksa/vssbroker/internal/subscription"
	"github.com/kuksa/vssbroker/internal/tree"
	"github.com/kuksa/vssbroker/internal/vss"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the VSS tree and serve broker requests",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// stdoutSink delivers subscription notifications as JSON lines on stdout.
// The concrete client transport (WebSocket/HTTP/RPC, spec.md §1) is an
// external collaborator out of the core's scope; this is the minimal
// stand-in that lets a standalone `vssbroker serve` process demonstrate
// the whole request/subscribe/publish path end to end.
type stdoutSink struct{ logger *zap.Logger }

func (s stdoutSink) Deliver(n subscription.Notification) error {
	msg := map[string]any{
		"action":         "subscription",
		"subscriptionId": n.SubscriptionID,
		"data": map[string]any{
			"path": n.Path.String(),
			"dp": map[string]any{
				string(n.Attribute): vss.AsString(n.Datatype, n.Value),
				"ts":                vss.TimestampToISO(n.TsNanos),
			},
		},
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(line))
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("db-url") {
		cfg.AuditDBURL = dbURL
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	definition, err := os.ReadFile(cfg.TreeDefinitionPath)
	if err != nil {
		return fmt.Errorf("failed to read tree definition: %w", err)
	}
	root, err := tree.ParseDefinition(definition)
	if err != nil {
		return fmt.Errorf("failed to parse tree definition: %w", err)
	}
	tree.ApplyDefaults(root, 0)
	signalTree := tree.New(root, nil)
	if err := signalTree.LoadOverlays(cfg.OverlayDir); err != nil {
		return fmt.Errorf("failed to load overlays: %w", err)
	}

	authenticator := auth.NewAuthenticator("", logger)
	if cfg.JWTPublicKeyPath != "" {
		keyPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read JWT public key: %w", err)
		}
		if err := authenticator.UpdatePublicKey(string(keyPEM)); err != nil {
			return fmt.Errorf("failed to install JWT public key: %w", err)
		}
	}

	var recorder *audit.Recorder
	if cfg.AuditDBURL != "" {
		database, err := coredb.Open(cfg.AuditDBURL)
		if err != nil {
			return fmt.Errorf("failed to open audit database: %w", err)
		}
		defer database.Close()
		if err := coredb.MigrateUp(database); err != nil {
			return fmt.Errorf("failed to migrate audit database: %w", err)
		}
		queries, err := coredb.LoadQueries(database)
		if err != nil {
			return fmt.Errorf("failed to load audit queries: %w", err)
		}
		recorder = audit.NewRecorder(queries, logger)
	}

	registry := subscription.New(stdoutSink{logger: logger}, 256, logger)
	signalTree.SetPublisher(registry)

	validator, err := protocol.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to build request validator: %w", err)
	}
	processor := protocol.NewProcessor(validator, signalTree, authenticator, registry, nil, recorder, logger)

	health := server.NewHealthServer(cfg.HealthHost, cfg.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.Start(ctx, nil)
	defer registry.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- health.Start(ctx)
	}()
	health.MarkServing()

	session := auth.NewSession("stdio", "stdio")
	go serveStdio(processor, session, logger)

	logger.Info("vssbroker serving", zap.String("health_addr", fmt.Sprintf("%s:%d", cfg.HealthHost, cfg.HealthPort)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down gracefully")
		return health.Shutdown(context.Background())
	}
}

// serveStdio drives the Request Processor from newline-delimited JSON on
// stdin, one request per line, echoing each response to stdout. A single
// worker stands in for spec.md §4's "fixed pool of transport workers";
// this is the minimal demonstration bridge described on stdoutSink.
func serveStdio(processor *protocol.Processor, session *auth.Session, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		response := processor.Process(session, line)
		os.Stdout.Write(response)
		os.Stdout.Write([]byte("\n"))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdio transport read error", zap.Error(err))
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "text" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return cfg.Build()
}
