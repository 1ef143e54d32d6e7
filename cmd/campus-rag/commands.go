package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"campus-rag/config"
	"campus-rag/internal/server"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "campus-rag",
		Short:        "UIN Salatiga campus assistant",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand(), newAskCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := server.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.NewServer(app)
			errCh := make(chan error, 1)
			go func() {
				log.Printf("Starting campus assistant on %s...", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVER_ADDR)")
	return cmd
}

func newAskCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question through the full pipeline and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := server.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.AskService.Ask(ctx, userID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			if result.Cached {
				fmt.Fprintln(cmd.ErrOrStderr(), "(cached)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "cli", "conversation identity used for history")
	return cmd
}

// loadConfig loads and validates configuration, listing every missing key
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
