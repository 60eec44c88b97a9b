package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/internal/handler"
	"github.com/young1lin/docsanswer/internal/pipeline"
	"github.com/young1lin/docsanswer/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int
	showVer bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docsanswer",
	Short: "Documentation question-answering service",
	Long: `docsanswer answers product questions from the documentation.
Each question is searched on an MCP documentation service, the most
relevant pages are fetched, and a language model writes the answer.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			fmt.Printf("docsanswer %s (built %s)\n", Version, BuildDate)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		p, err := pipeline.FromConfig(cfg, Version)
		if err != nil {
			return err
		}

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("model", cfg.LLM.Model),
			zap.String("search", cfg.Search.BaseURL),
		)
		return startServer(cfg, p)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		p, err := pipeline.FromConfig(cfg, Version)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := p.Run(ctx, strings.Join(args, " "))
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), pipeline.Guidance(err))
			return err
		}

		out := cmd.OutOrStdout()
		if verbose {
			fmt.Fprintf(out, "context: %s\n", res.ContextSource)
			for _, u := range res.SelectedURLs {
				fmt.Fprintf(out, "source:  %s\n", u)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, res.Answer)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml if present)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "print the context source and selected pages")

	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func startServer(cfg *config.Config, p *pipeline.Pipeline) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewChatHandler(p, &cfg.Server, Version),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf(`
  docsanswer %s
  Chat:   http://%s:%d/api/chat
  MCP:    http://%s:%d/mcp
  Health: http://%s:%d/health

`, Version, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
