/* Copyright 2025 Matsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/server/buildinfo"
	"github.com/matfinder/matsync/pkg/server/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newStartCmd() *cobra.Command {
	var p config.Params

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(p)
			if err != nil {
				return errors.Wrap(err, "reading configuration")
			}

			return start(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.AppEnv, "appEnv", "", "application environment (env: APP_ENV, default: PRODUCTION)")
	f.StringVar(&p.Port, "port", "", "server port (env: PORT, default: 3001)")
	f.StringVar(&p.DBDriver, "dbDriver", "", "database driver: sqlite or postgres (env: DB_DRIVER, default: sqlite)")
	f.StringVar(&p.DBDSN, "dbDsn", "", "database file path or postgres DSN (env: DB_DSN, default: $XDG_DATA_HOME/matsync/server.db)")
	f.StringVar(&p.APIKey, "apiKey", "", "bearer key required on API requests (env: API_KEY)")
	f.BoolVar(&p.DisableRateLimit, "disableRateLimit", false, "disable the per-client rate limiter (env: DISABLE_RATE_LIMIT)")
	f.StringVar(&p.LogLevel, "logLevel", "", "log level: debug, info, warn, or error (env: LOG_LEVEL, default: info)")

	return cmd
}

func start(ctx context.Context, cfg config.Config) error {
	log.SetLevel(cfg.LogLevel)

	a, err := initApp(cfg)
	if err != nil {
		return err
	}
	defer closeDB(a.DB)

	srv, err := newHTTPServer(&a)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"version": buildinfo.Version,
			"port":    cfg.Port,
			"driver":  cfg.DBDriver,
		}).Info("matserver starting")

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serving")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}

	return nil
}
