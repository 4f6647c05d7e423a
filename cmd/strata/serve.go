package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/config"
	"github.com/strata-dev/strata/pkg/devtools"
	"github.com/strata-dev/strata/pkg/strata"
	"github.com/strata-dev/strata/pkg/telemetry"
)

func serveCmd() *cobra.Command {
	var (
		addr string
		seed string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the store inspector",
		Long: `Serve runs the HTTP store inspector over a registry seeded from a
JSON file (or an empty store when no seed is given).

Endpoints:

  GET  /stores                     registered store names
  GET  /stores/{name}              full snapshot
  GET  /stores/{name}/value?path=  value at a path
  POST /stores/{name}/value?path=  set a value (JSON body)
  GET  /stores/{name}/watch        websocket snapshot stream
  GET  /metrics                    Prometheus scrape`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if seed != "" {
				cfg.Seed = seed
			}

			var opts []strata.Option
			if cfg.Metrics {
				opts = append(opts, strata.WithInstrument(
					telemetry.Prometheus(telemetry.WithSubsystem(cfg.Name)),
				))
			}

			initial, err := loadSeed(cfg.Seed)
			if err != nil {
				return err
			}

			store, err := strata.New(cfg.Name, initial, opts...)
			if err != nil {
				return err
			}

			registry := strata.NewRegistry()
			if err := registry.Add(store); err != nil {
				return err
			}

			success("store %q ready", cfg.Name)
			info("inspector listening on http://%s", cfg.Addr)
			return http.ListenAndServe(cfg.Addr, devtools.New(registry).Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from strata.json, then "+config.DefaultAddr+")")
	cmd.Flags().StringVar(&seed, "seed", "", "JSON file with the store's initial state")
	return cmd
}

// loadSeed reads the initial state from a JSON file; nil means empty.
func loadSeed(path string) (any, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}

	var initial any
	if err := json.Unmarshal(data, &initial); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return initial, nil
}
