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

package watch

import (
	gocontext "context"
	"net/http"
	"time"

	"github.com/matfinder/matsync/pkg/cli/context"
	"github.com/matfinder/matsync/pkg/cli/infra"
	clilog "github.com/matfinder/matsync/pkg/cli/log"
	"github.com/matfinder/matsync/pkg/cli/output"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/matfinder/matsync/pkg/sync"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var example = `
  matsync watch
  matsync watch --schedule "0 */5 * * * *" --metricsAddr :9100`

var (
	scheduleFlag    string
	metricsAddrFlag string
	noInitialFlag   bool
)

// NewCmd returns a new watch command
func NewCmd(ctx context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Sync on a schedule until interrupted",
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&scheduleFlag, "schedule", "", "cron spec of the runs (defaults to the configured schedule)")
	f.StringVar(&metricsAddrFlag, "metricsAddr", "", "serve prometheus metrics on this address")
	f.BoolVar(&noInitialFlag, "noInitial", false, "wait for the first scheduled run instead of syncing right away")

	return cmd
}

type runner interface {
	Run(ctx gocontext.Context) (sync.Report, error)
}

type watcher struct {
	runner runner
	// afterRun is called after every run
	afterRun func(sync.Report, error)
}

func (w *watcher) tick(ctx gocontext.Context) {
	report, err := w.runner.Run(ctx)

	switch {
	case errors.Cause(err) == sync.ErrRunInProgress:
		clilog.Warnf("a sync is already running, skipping\n")
	case err != nil:
		clilog.Errorf("%s\n", err.Error())
	default:
		output.Summary(report)
	}

	if w.afterRun != nil {
		w.afterRun(report, err)
	}
}

// watch runs a sync on every activation of spec until ctx is done. Runs never
// overlap; activations that fire during a run are coalesced.
func (w *watcher) watch(ctx gocontext.Context, spec string, initial bool) error {
	trigger := make(chan struct{}, 1)

	c := cron.New()
	err := c.AddFunc(spec, func() {
		select {
		case trigger <- struct{}{}:
		default:
			log.WithFields(log.Fields{"schedule": spec}).Info("sync still running, coalescing scheduled run")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling %q", spec)
	}

	c.Start()
	defer c.Stop()

	if initial {
		w.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			w.tick(ctx)
		}
	}
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return mux
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorWrap(err, "serving metrics")
		}
	}()

	return srv
}

func newRun(ctx context.Ctx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		spec := ctx.Config.Schedule
		if scheduleFlag != "" {
			spec = scheduleFlag
		}
		addr := ctx.Config.MetricsAddr
		if metricsAddrFlag != "" {
			addr = metricsAddrFlag
		}

		events := status.NewChanReporter(64)
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for e := range events.Events() {
				output.Reporter{}.Report(e)
			}
		}()

		s, err := ctx.NewSyncer(status.Multi{events, status.LogReporter{}})
		if err != nil {
			events.Close()
			return errors.Wrap(err, "setting up the syncer")
		}

		if addr != "" {
			srv := serveMetrics(addr, ctx.Registry)
			defer srv.Close()
			clilog.Infof("serving metrics on %s\n", addr)
		}

		clilog.Infof("watching with schedule %q\n", spec)
		w := &watcher{runner: s}
		err = w.watch(cmd.Context(), spec, !noInitialFlag)

		events.Close()
		<-drained
		if n := events.Dropped(); n > 0 {
			log.WithFields(log.Fields{"dropped": n}).Warn("status events dropped")
		}

		return err
	}
}
