package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"fileshare/internal/fileshare"
)

// Reconciler runs fileshare.Service.Reconcile on a cron schedule.
type Reconciler struct {
	svc     *fileshare.Service
	opts    fileshare.ReconcileOptions
	logger  *slog.Logger
	cron    *cron.Cron
	ctx     context.Context
	runs    *prometheus.CounterVec
	removed prometheus.Counter
}

// NewReconciler validates schedule and registers the job. Collectors are
// registered on reg when it is non-nil.
func NewReconciler(svc *fileshare.Service, schedule string, opts fileshare.ReconcileOptions, logger *slog.Logger, reg prometheus.Registerer) (*Reconciler, error) {
	r := &Reconciler{
		svc:    svc,
		opts:   opts,
		logger: logger,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileshare",
			Name:      "reconcile_runs_total",
			Help:      "Scheduled reconcile runs by result.",
		}, []string{"result"}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fileshare",
			Name:      "reconcile_removed_blobs_total",
			Help:      "Orphan blobs removed by scheduled reconcile runs.",
		}),
		ctx: context.Background(),
	}

	cl := cronLogger{l: logger}
	r.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}

	if reg != nil {
		if err := reg.Register(r.runs); err != nil {
			return nil, err
		}
		if err := reg.Register(r.removed); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Start begins scheduling. Runs use ctx, so cancelling it aborts a run in flight.
func (r *Reconciler) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.logger.Info("reconciler scheduled", "next", r.cron.Entries()[0].Next)
}

// Stop stops scheduling and waits for a running job to return.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reconciler) run() {
	report, err := r.svc.Reconcile(r.ctx, r.opts)
	if err != nil {
		r.runs.WithLabelValues("error").Inc()
		r.logger.Error("scheduled reconcile failed", "error", err)
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.removed.Add(float64(report.Removed))
}
