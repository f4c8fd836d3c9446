// Package cli implements the inbox command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/app"
	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/gateway/httpapi"
	"github.com/nhle/inbox/internal/identity"
	"github.com/nhle/inbox/internal/model"
)

// Options injects dependencies for tests. Zero fields get production
// defaults.
type Options struct {
	Keyring credential.Keyring
	Logger  *zap.Logger
	Out     io.Writer
	Err     io.Writer

	// RunTUI replaces app.Run.
	RunTUI func(app.Env) error
}

type runtime struct {
	opts    Options
	cfgPath string
	cfg     *model.AppConfig
}

// clientFlags are shared by commands that talk to the notification API.
type clientFlags struct {
	server string
	token  string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "", "notification API URL (default from config)")
	cmd.Flags().StringVar(&f.token, "token", "", "API token (default from keyring)")
}

// NewRootCommand builds the inbox command tree.
func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:   "inbox",
		Short: "Terminal notification inbox",
		Long: `inbox keeps a terminal inbox in sync with a notification server.

Run without arguments to open the inbox. Polling pauses while the terminal
is unfocused or suspended and resumes with a catch-up sync.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load()
		},
		RunE: rt.runTUI,
	}
	root.PersistentFlags().StringVar(&rt.cfgPath, "config", "", "config file (default is ~/.config/inbox/config.yaml)")
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.AddCommand(
		newSendCommand(rt),
		newSendTemplateCommand(rt),
		newServeCommand(rt),
		newLoginCommand(rt),
		newLogoutCommand(rt),
		newBadgeCommand(rt),
		newTokenCommand(rt),
	)
	return root
}

// Execute runs the inbox command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand(Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (rt *runtime) load() error {
	if rt.cfgPath == "" {
		rt.cfgPath = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(rt.cfgPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg

	if rt.opts.Keyring == nil {
		rt.opts.Keyring = credential.NewSystem(model.ConfigDir())
	}
	return nil
}

func (rt *runtime) runTUI(cmd *cobra.Command, args []string) error {
	// The alt screen owns the terminal, so the TUI logs to a file.
	logger, err := rt.logger(rt.cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	run := rt.opts.RunTUI
	if run == nil {
		run = app.Run
	}
	return run(app.Env{
		Config:     rt.cfg,
		ConfigPath: rt.cfgPath,
		Keyring:    rt.opts.Keyring,
		Logger:     logger,
	})
}

// logger builds a JSON zap logger writing to path at the configured level.
func (rt *runtime) logger(path string) (*zap.Logger, error) {
	if rt.opts.Logger != nil {
		return rt.opts.Logger, nil
	}
	if path == "" {
		return zap.NewNop(), nil
	}
	if path != "stderr" && path != "stdout" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	level, err := zap.ParseAtomicLevel(rt.cfg.Log.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// client resolves the API URL, token, and token owner for a command.
func (rt *runtime) client(f clientFlags) (gateway.Gateway, string, error) {
	baseURL := f.server
	if baseURL == "" {
		baseURL = rt.cfg.Server.BaseURL
	}

	token := f.token
	if token == "" {
		stored, err := rt.opts.Keyring.Get(credential.TokenKey(rt.cfg.Server.Profile))
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				return nil, "", errors.New("not logged in: run inbox login or pass --token")
			}
			return nil, "", err
		}
		token = stored
	}

	userID, err := identity.UserIDFromToken(token)
	if err != nil {
		return nil, "", fmt.Errorf("unusable token: %w", err)
	}
	return httpapi.New(baseURL, token), userID, nil
}
