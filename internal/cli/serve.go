package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/server"
	"github.com/nhle/inbox/internal/store"
)

func newServeCommand(rt *runtime) *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference notification server",
		Long: `serve runs an HTTP notification API backed by SQLite.

When serve.jwt_secret is set, every API request needs a bearer token signed
with it (see inbox token), and a token only reaches its own user's
notifications.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = rt.cfg.Serve.Addr
			}
			if dbPath == "" {
				dbPath = rt.cfg.Serve.DBPath
			}

			logger, err := rt.logger("stderr")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if dbPath != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
					return fmt.Errorf("creating database directory: %w", err)
				}
			}
			st, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if rt.cfg.Serve.JWTSecret == "" {
				logger.Warn("serve.jwt_secret is empty; API is unauthenticated")
			}

			srv := server.New(st,
				server.WithLogger(logger),
				server.WithJWTSecret(rt.cfg.Serve.JWTSecret),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving", zap.String("addr", addr), zap.String("db", dbPath))
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from config)")
	return cmd
}
