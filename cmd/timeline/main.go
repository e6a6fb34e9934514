// Command timeline serves the exam allocation API and hosts the terminal
// timeline editor.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/config"
	"github.com/example/exam-timeline/internal/logging"
	"github.com/example/exam-timeline/internal/persistence/sqlite"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand once the root command has
// loaded the configuration.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "timeline",
		Short:         "Exam room allocation server and timeline editor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "configuration file (YAML, JSON or TOML)")

	root.AddCommand(
		newServeCommand(c),
		newSeedCommand(c),
		newEditCommand(c),
		newHashKeyCommand(),
		newVersionCommand(),
	)
	root.SetErr(os.Stderr)
	return root
}

func (c *cli) load(stderr io.Writer) error {
	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.LogFormat, cfg.LogLevel, stderr)
	return nil
}

// services is the application layer over one SQLite storage.
type services struct {
	storage     *sqlite.Storage
	rooms       *application.RoomService
	exams       *application.ExamService
	allocations *application.AllocationService
}

func (s *services) Close() error {
	return s.storage.Close()
}

func openServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (*services, error) {
	storage, err := sqlite.Open(cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	idGenerator := uuid.NewString
	now := time.Now

	roomRepo := newRoomRepositoryAdapter(storage)
	examRepo := newExamRepositoryAdapter(storage)
	allocationRepo := newAllocationRepositoryAdapter(storage)

	opts := []application.AllocationServiceOption{application.WithAllocationClock(idGenerator, now)}
	if cfg.CacheTTL > 0 {
		opts = append(opts, application.WithListCache(cfg.CacheTTL, cfg.CacheEntries))
	}

	return &services{
		storage:     storage,
		rooms:       application.NewRoomService(roomRepo, idGenerator, now, logger),
		exams:       application.NewExamService(examRepo, idGenerator, now, logger),
		allocations: application.NewAllocationService(allocationRepo, roomRepo, examRepo, logger, opts...),
	}, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		// The version must print even without a usable configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func newHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key KEY",
		Short: "Print the argon2id hash of an operator key for TIMELINE_OPERATOR_KEY",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := application.HashOperatorKey(args[0], application.DefaultArgon2idParams)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return err
		},
	}
}
