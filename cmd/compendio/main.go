package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/iudanet/compendio/internal/auth"
	"github.com/iudanet/compendio/internal/config"
	"github.com/iudanet/compendio/internal/conflicts"
	"github.com/iudanet/compendio/internal/localstate"
	"github.com/iudanet/compendio/internal/locking"
	"github.com/iudanet/compendio/internal/mirror"
	"github.com/iudanet/compendio/internal/netshare"
	"github.com/iudanet/compendio/internal/policy"
	"github.com/iudanet/compendio/internal/registry"
	"github.com/iudanet/compendio/internal/server"
	"github.com/iudanet/compendio/internal/server/handlers"
	"github.com/iudanet/compendio/internal/syncer"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const stateFileName = "state.db"

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to config file (default: ./"+config.DefaultFileName+")")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	command := "serve"
	if args := flag.Args(); len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "serve":
		if err := runServe(*configPath, *listenAddr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "passwd":
		if err := runPasswd(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Fprintln(os.Stderr, "Commands: serve (default), passwd, version")
		os.Exit(1)
	}
}

func runServe(configPath, listenAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.LocalRoot, 0o755); err != nil {
		return fmt.Errorf("cannot create local root: %w", err)
	}

	network := netshare.Layout{Root: cfg.NetworkRoot}
	local := netshare.Layout{Root: cfg.LocalRoot}

	probe := netshare.NewProbe(cfg.NetworkRoot, cfg.ProbeTTL, logger)
	locks := locking.NewManager(network, probe, cfg.RecordLockTTL, logger)
	// Release is idempotent; this deferred call backs up the explicit
	// shutdown release on panicking or early-error exit paths.
	defer locks.ReleaseGlobal()
	ledger := conflicts.NewLedger(local.ConflictsFile(), logger)

	state, err := localstate.New(filepath.Join(cfg.LocalRoot, stateFileName))
	if err != nil {
		return err
	}
	defer state.Close()

	sync := syncer.New(probe, locks, network, local, ledger, state, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Refresh the working copy before the registry opens its database:
	// the pull replaces the file wholesale.
	if sync.PullFromNetwork(ctx) {
		logger.Info("startup pull completed")
	}

	store, err := registry.New(ctx, local.DBFile())
	if err != nil {
		return err
	}
	defer store.Close()

	// Legacy spreadsheet imports leave "nan" strings in text columns.
	if err := store.CleanNaN(ctx); err != nil {
		logger.Warn("cannot clean legacy nan values", "error", err)
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		// Ephemeral secret: tokens stop working across restarts until
		// `compendio passwd` persists one.
		jwtSecret = make([]byte, 32)
		if _, err := rand.Read(jwtSecret); err != nil {
			return fmt.Errorf("cannot generate jwt secret: %w", err)
		}
		logger.Warn("no jwt_secret configured, using an ephemeral one")
	}
	jwtConfig := handlers.JWTConfig{
		Secret:          jwtSecret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}

	guard := policy.NewGuard(locks, probe, logger)
	mir := mirror.New(local.MirrorFile(), logger)
	actor := actorName()

	h := server.Handlers{
		Auth:      handlers.NewAuthHandler(logger, cfg.AdminPasswordHash, state, jwtConfig),
		Atti:      handlers.NewAttiHandler(logger, store, mir, guard, locks, state, local, actor),
		Conflicts: handlers.NewConflictsHandler(logger, ledger, store, guard, state, actor),
		Sync:      handlers.NewSyncHandler(logger, sync, store, probe, locks, ledger),
	}

	srv := server.New(cfg.ListenAddr, logger, jwtConfig, h)
	err = srv.Run(ctx)

	// Push local work back and release the global lock on the way out.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if probe.Online() && locks.HoldsGlobal() {
		if cpErr := store.Checkpoint(shutdownCtx); cpErr != nil {
			logger.Error("cannot checkpoint registry before final push", "error", cpErr)
		} else if !sync.PushToNetwork(shutdownCtx) {
			logger.Warn("final push did not complete")
		}
	}
	locks.ReleaseGlobal()

	return err
}

func runPasswd(configPath string) error {
	fmt.Print("New admin password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("cannot read password: %w", err)
	}

	fmt.Print("Repeat password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("cannot read password: %w", err)
	}

	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}
	if len(password) == 0 {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return err
	}

	// Persist a signing secret alongside the hash unless one exists.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	jwtSecret := ""
	if cfg.JWTSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("cannot generate jwt secret: %w", err)
		}
		jwtSecret = hex.EncodeToString(buf)
	}

	if err := config.SaveCredentials(configPath, hash, jwtSecret); err != nil {
		return err
	}
	fmt.Println("Admin password updated.")
	return nil
}

func actorName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "admin"
}

func printVersion() {
	fmt.Printf("Compendio Atti\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
