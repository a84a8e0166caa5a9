package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/httpvalidator"
	"github.com/erraggy/oasguard/logging"
)

const shutdownTimeout = 10 * time.Second

var errNoContract = errors.New("no contract document: set --contract or OASGUARD_CONTRACT")

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a contract in front of an echo handler",
		Long: `Mount every operation of a contract document and answer each request that
passes validation with a JSON echo of the validated values. Rejected requests
receive the structured error response.`,
		Example: `  oasguard serve --contract contract.yaml --addr :8080
  OASGUARD_VALIDATION_PARSE_BODIES_ON_WILDCARD=true oasguard serve --contract contract.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), settings)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("contract", "", "contract document (yaml or json)")
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("contract", cmd.Flags().Lookup("contract"))
	return cmd
}

// newServeHandler loads the contract and mounts it with the echo handler.
func newServeHandler(settings Settings, logger logging.Logger) (http.Handler, error) {
	if settings.Contract == "" {
		return nil, errNoContract
	}
	doc, err := contract.LoadFile(settings.Contract)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	err = httpvalidator.Mount(mux, doc, echoHandler,
		httpvalidator.WithSettings(settings.Validation),
		httpvalidator.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return mux, nil
}

func runServe(ctx context.Context, settings Settings) error {
	zl, err := logging.NewZap(settings.Log)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.NewZapAdapter(zl)

	handler, err := newServeHandler(settings, logger)
	if err != nil {
		zl.Error("contract rejected", zap.String("contract", settings.Contract), zap.Error(err))
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", settings.Addr), zap.String("contract", settings.Contract))
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

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
