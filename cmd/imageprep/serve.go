package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep"
	"github.com/Skryldev/imageprep/config"
	"github.com/Skryldev/imageprep/hooks"
	"github.com/Skryldev/imageprep/preview"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve preview URLs and Prometheus metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metrics := hooks.NewPrometheusMetrics()
			p, logger, err := g.open(func(c *config.Config) {
				if c.Preview.BaseURL == config.Default().Preview.BaseURL {
					c.Preview.BaseURL = "http://" + addr + "/blob/"
				}
			}, imageprep.WithMetrics(metrics))
			if err != nil {
				return err
			}
			defer p.Close()

			r := mux.NewRouter()
			preview.NewHandler(p.Previews(), p.Config().Validation.MaxSize).Register(r)
			r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
			r.HandleFunc("/capabilities", func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(p.Capabilities(req.Context()))
			}).Methods(http.MethodGet)

			srv := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("serve.listen", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("serve.shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "listen address")
	return cmd
}
