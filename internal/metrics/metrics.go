package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runs        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "replyrunner_runs_total", Help: "Pipeline runs by terminal outcome"}, []string{"outcome"})
	inboundMsgs = prometheus.NewCounter(prometheus.CounterOpts{Name: "replyrunner_inbound_total", Help: "Inbound trigger messages seen in watch mode"})
	genErrors   = prometheus.NewCounter(prometheus.CounterOpts{Name: "replyrunner_generation_errors_total", Help: "Generation stage failures"})
	pubErrors   = prometheus.NewCounter(prometheus.CounterOpts{Name: "replyrunner_publish_errors_total", Help: "Publish stage failures"})
	sendErrors  = prometheus.NewCounter(prometheus.CounterOpts{Name: "replyrunner_send_errors_total", Help: "Transport report-send errors"})
)

func init() {
	prometheus.MustRegister(runs, inboundMsgs, genErrors, pubErrors, sendErrors)
}

// Start runs a Prometheus handler on the given listen addr. Empty addr disables it.
func Start(ctx context.Context, listen string, log *slog.Logger) error {
	if listen == "" {
		return nil
	}
	srv := &http.Server{Addr: listen, Handler: promhttp.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", slog.String("err", err.Error()))
			}
		}
	}()
	return nil
}

func IncRun(outcome string) { runs.WithLabelValues(outcome).Inc() }

func IncInbound() { inboundMsgs.Inc() }

func IncGenerationError() { genErrors.Inc() }

func IncPublishError() { pubErrors.Inc() }

func IncSendError() { sendErrors.Inc() }
