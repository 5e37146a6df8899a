package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/danmuck/syncws/internal/logreplay"
	"github.com/danmuck/syncws/internal/replay"
	"github.com/danmuck/syncws/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var errReplayFailures = errors.New("replay finished with failed commands")

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		timeout     time.Duration
		inFlight    int
		stopOnError bool
	)
	cmd := &cobra.Command{
		Use:   "replay <url> <log-file>",
		Short: "Replay the WebSocket commands recorded in a DevTools debug log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			url, path := args[0], args[1]
			rc := opts.cfg.Replay
			if cmd.Flags().Changed("timeout") {
				rc.ResponseTimeout = timeout
			}
			if cmd.Flags().Changed("in-flight") {
				rc.MaxInFlight = inFlight
			}
			if cmd.Flags().Changed("stop-on-error") {
				rc.StopOnError = stopOnError
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer func() {
				err = multierr.Append(err, f.Close())
			}()

			return runSession(cmd.Context(), opts.cfg, func(ctx context.Context, sock *session.Socket) error {
				if err := sock.ConnectContext(ctx, url); err != nil {
					return fmt.Errorf("connect %s: %w", url, err)
				}
				summary, runErr := replay.NewRunner(sock, rc).Run(ctx, logreplay.NewReader(f))
				if err := writeSummary(cmd, opts.output, summary); err != nil {
					return multierr.Append(runErr, err)
				}
				if runErr != nil {
					return runErr
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%w: %d of %d", errReplayFailures, summary.Failed, summary.Commands)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-command response deadline (overrides response_timeout)")
	cmd.Flags().IntVar(&inFlight, "in-flight", 0, "commands sent ahead of their responses (overrides max_in_flight)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort at the first failed command")
	return cmd
}

func writeSummary(cmd *cobra.Command, format string, summary replay.Summary) error {
	return writeOutput(cmd.OutOrStdout(), format, summary, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "SEQ\tID\tMETHOD\tSTATUS\tLATENCY\tEVENTS\tERROR")
		for _, r := range summary.Results {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%.1fms\t%d\t%s\n",
				r.Seq, r.ID, r.Method, r.Status, r.LatencyMS, r.Events, r.Error)
		}
		fmt.Fprintf(tw, "\ncommands=%d succeeded=%d failed=%d events=%d unmatched=%d skipped=%d\n",
			summary.Commands, summary.Succeeded, summary.Failed, summary.Events, summary.Unmatched, summary.Skipped)
	})
}
