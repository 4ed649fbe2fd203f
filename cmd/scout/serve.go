//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-scout/config"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the thread API over HTTP",
	Long: `Serve exposes the agent over HTTP:

  POST   /v1/threads/{thread}/messages   {"message": "...", "stream": false}
  GET    /v1/threads                     list threads
  GET    /v1/threads/{thread}            latest checkpoint (?format=text|markdown|html)
  DELETE /v1/threads/{thread}            forget a thread
  GET    /v1/tools                       list tools
  GET    /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		database, _ := cmd.Flags().GetBool("database")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		a, err := newApp(ctx, cfg, config.Requirements{Search: true, Database: database})
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warnf("close: %v", err)
			}
		}()

		opts := []server.Option{server.WithTools(a.tools)}
		if len(cfg.Server.AllowedOrigins) > 0 {
			opts = append(opts, server.WithAllowedOrigins(cfg.Server.AllowedOrigins...))
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(a.runner, a.saver, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("listening on %s", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Infof("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config, "+config.DefaultServerAddr+")")
	serveCmd.Flags().Bool("database", false, "Give the agent the MCP database tools")
}
