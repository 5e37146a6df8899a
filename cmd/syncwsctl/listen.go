package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/danmuck/syncws/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type listenRecord struct {
	Seq     int    `json:"seq" yaml:"seq"`
	Message string `json:"message" yaml:"message"`
}

func newListenCmd(opts *rootOptions) *cobra.Command {
	var (
		maxMessages int
		poll        time.Duration
		reconnects  int
	)
	cmd := &cobra.Command{
		Use:   "listen <url>",
		Short: "Print inbound messages until the peer goes away",
		Long: `listen prints every inbound message. When reconnect_attempts is set
(config file or --reconnect), a dropped connection is re-established with
exponential backoff before giving up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if cmd.Flags().Changed("reconnect") {
				opts.cfg.ReconnectAttempts = reconnects
			}
			cfg := opts.cfg
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))

			return runSession(cmd.Context(), cfg, func(ctx context.Context, sock *session.Socket) error {
				if err := sock.ConnectWithBackoff(ctx, url, cfg.ReconnectAttempts+1, rng); err != nil {
					return err
				}
				out := newStreamWriter(cmd.OutOrStdout(), opts.output)
				defer func() { _ = out.close() }()

				seq := 0
				for ctx.Err() == nil {
					msg, status := sock.ReceiveNextMessage(time.Now().Add(poll))
					switch status {
					case session.StatusOK:
						seq++
						if err := out.write(listenRecord{Seq: seq, Message: msg}, msg); err != nil {
							return err
						}
						if maxMessages > 0 && seq >= maxMessages {
							return nil
						}
					case session.StatusTimeout:
					case session.StatusDisconnected:
						if cfg.ReconnectAttempts <= 0 {
							log.Info().Str("url", url).Int("messages", seq).Msg("connection closed")
							return nil
						}
						log.Warn().Str("url", url).Msg("connection lost, reconnecting")
						if err := sock.ConnectWithBackoff(ctx, url, cfg.ReconnectAttempts, rng); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxMessages, "max", 0, "stop after this many messages (0 = unlimited)")
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "receive slice between cancellation checks")
	cmd.Flags().IntVar(&reconnects, "reconnect", 0, "reconnect rounds after a drop (overrides reconnect_attempts)")
	return cmd
}
