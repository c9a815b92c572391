package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fap-edu/fap-ledger-go/pkg/config"
	"github.com/fap-edu/fap-ledger-go/pkg/metrics"
	"github.com/fap-edu/fap-ledger-go/pkg/sdk"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootConfig struct {
	ConfigFile  string
	MetricsAddr string
	Debug       bool
}

var rootFlags rootConfig

var rootCmd = &cobra.Command{
	Use:          "ledgerctl",
	Short:        "Academic ledger CLI",
	Long:         "Command line interface for issuing credentials, marking attendance and auditing ledger transactions.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.ConfigFile, "config", "c", "", "YAML config file; LEDGER_* environment variables override it")
	rootCmd.PersistentFlags().StringVar(&rootFlags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.Debug, "debug", "d", false, "debug logging")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if rootFlags.ConfigFile != "" {
		cfg, err = config.LoadFile(rootFlags.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if rootFlags.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// openLedger connects to the node named in the config. Commands that write
// pass signing so a missing key fails before any dial. The returned stop
// function closes the connection and the metrics server, if any.
func openLedger(ctx context.Context, signing bool) (*sdk.Core, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if signing {
		if _, err := cfg.RequirePrivateKey(); err != nil {
			return nil, nil, err
		}
	}

	var opts []sdk.Option
	var srv *http.Server
	if rootFlags.MetricsAddr != "" {
		recorder := metrics.NewRecorder(nil)
		opts = append(opts, sdk.WithMetrics(recorder))
		mux := http.NewServeMux()
		recorder.Register(mux)
		srv = &http.Server{Addr: rootFlags.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.L().Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	ledger, err := sdk.NewSDK(ctx, cfg, opts...)
	if err != nil {
		if srv != nil {
			_ = srv.Close()
		}
		return nil, nil, err
	}
	stop := func() {
		ledger.Close()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
	}
	return ledger, stop, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseID accepts decimal ids with optional underscores, e.g. 1_000.
func parseID(s string) (*uint256.Int, error) {
	id, err := uint256.FromDecimal(strings.ReplaceAll(s, "_", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
