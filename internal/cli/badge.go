package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox/internal/focus"
	"github.com/nhle/inbox/internal/session"
)

func newBadgeCommand(rt *runtime) *cobra.Command {
	var (
		cf    clientFlags
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Print the unread notification count",
		Long: `badge prints the server's unread count for the logged-in user. With
--watch it keeps polling and prints the count each time it changes, which
suits status bars.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, userID, err := rt.client(cf)
			if err != nil {
				return err
			}
			logger, err := rt.logger("stderr")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// A one-shot count never polls; the tracker starts unfocused so
			// the scheduler stays idle.
			tracker := focus.NewTracker(watch)
			counter := session.NewUnreadCounter(userID, gw, tracker,
				session.WithLogger(logger),
				session.WithConfig(session.Config{
					PageSize: rt.cfg.Sync.PageSize,
					Interval: rt.cfg.PollInterval(),
				}),
			)

			if !watch {
				counter.Start()
				defer counter.Stop()
				if err := counter.Refresh(cmd.Context()); err != nil {
					return err
				}
				n, _ := counter.Count()
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchCount(ctx.Done(), counter, cmd.OutOrStdout())
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and print changes")
	return cmd
}

// watchCount prints the counter's value on every change until done closes.
func watchCount(done <-chan struct{}, counter *session.UnreadCounter, out io.Writer) error {
	changed := make(chan struct{}, 1)
	counter.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	counter.Start()
	defer counter.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-changed:
			if n, ok := counter.Count(); ok {
				fmt.Fprintln(out, n)
			}
		}
	}
}
