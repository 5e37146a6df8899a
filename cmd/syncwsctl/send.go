package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/danmuck/syncws/internal/session"
	"github.com/spf13/cobra"
)

var errSendFailed = errors.New("send failed")

type sendReply struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

type sendResult struct {
	URL     string      `json:"url" yaml:"url"`
	Sent    bool        `json:"sent" yaml:"sent"`
	Replies []sendReply `json:"replies" yaml:"replies"`
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var (
		wait    time.Duration
		replies int
	)
	cmd := &cobra.Command{
		Use:   "send <url> <message>",
		Short: "Connect, send one message and print the replies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, message := args[0], args[1]
			return runSession(cmd.Context(), opts.cfg, func(ctx context.Context, sock *session.Socket) error {
				if err := sock.ConnectContext(ctx, url); err != nil {
					return fmt.Errorf("connect %s: %w", url, err)
				}
				if !sock.Send(message) {
					return fmt.Errorf("%s: %w", url, errSendFailed)
				}

				res := sendResult{URL: url, Sent: true, Replies: []sendReply{}}
				for i := 0; i < replies; i++ {
					msg, status := sock.ReceiveNextMessage(time.Now().Add(wait))
					res.Replies = append(res.Replies, sendReply{Status: status.String(), Message: msg})
					if status != session.StatusOK {
						break
					}
				}
				return writeOutput(cmd.OutOrStdout(), opts.output, res, func(tw *tabwriter.Writer) {
					fmt.Fprintln(tw, "STATUS\tMESSAGE")
					for _, r := range res.Replies {
						fmt.Fprintf(tw, "%s\t%s\n", r.Status, r.Message)
					}
				})
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for each reply")
	cmd.Flags().IntVar(&replies, "replies", 1, "number of replies to wait for (0 sends without waiting)")
	return cmd
}
