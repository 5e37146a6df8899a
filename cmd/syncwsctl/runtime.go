package main

import (
	"context"
	"time"

	"github.com/danmuck/syncws/internal/admin"
	"github.com/danmuck/syncws/internal/auth"
	"github.com/danmuck/syncws/internal/netexec"
	"github.com/danmuck/syncws/internal/session"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// runSession owns the executor, the socket and the optional admin server for
// one command. fn runs with a context cancelled when the admin server fails.
func runSession(ctx context.Context, cfg runtimeConfig, fn func(ctx context.Context, sock *session.Socket) error) (err error) {
	exec := netexec.New(cfg.ID)
	sock := session.NewSocket(exec, cfg.Session)
	defer func() {
		sock.Close()
		exec.Stop()
	}()

	g, gctx := errgroup.WithContext(ctx)
	var srv *admin.Server
	if cfg.AdminAddr != "" {
		srv = admin.New(cfg.ID, cfg.AdminAddr, sock, cfg.CorsOrigins)
		if cfg.AdminToken != "" {
			srv.RequireToken(auth.StaticToken{Token: cfg.AdminToken})
		}
		g.Go(srv.ListenAndServe)
	}
	g.Go(func() (runErr error) {
		if srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				runErr = multierr.Append(runErr, srv.Shutdown(shutdownCtx))
			}()
		}
		return fn(gctx, sock)
	})

	err = g.Wait()
	if err != nil {
		log.Debug().Err(err).Str("id", cfg.ID).Msg("session command finished with error")
	}
	return err
}
