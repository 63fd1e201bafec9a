package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/papertrading"
	"github.com/fincept/gateway/internal/plugin"
)

var servePaperTrading bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway: auth refresh, streaming aggregation, and (if enabled) metrics export",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		requireNoError(err)

		if servePaperTrading {
			sim := papertrading.NewSimulator(a.orchestrator)
			a.pipeline.Register(papertrading.Plugin(sim))
			a.log.Info("serve", "paper trading interceptor enabled", nil)
		} else {
			registerAuditLog(a)
		}

		requireNoError(a.start(ctx))
		defer a.stop()

		if a.cfg.Metrics.Enabled {
			addr := a.cfg.Metrics.Addr
			if addr == "" {
				addr = ":9090"
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: addr, Handler: mux}
			go func() {
				a.log.Info("serve", "metrics server listening", map[string]any{"addr": addr})
				_ = srv.ListenAndServe()
			}()
			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
		}

		go drainEvents(ctx, a)

		a.log.Info("serve", "gateway running", map[string]any{"brokers": a.orchestrator.ActiveBrokerIDs()})
		<-ctx.Done()
		a.log.Info("serve", "shutting down", nil)
	},
}

// registerAuditLog is the default PRE_ORDER/POST_ORDER hook pair used when
// paper trading is not enabled: it only logs, never cancels or modifies.
func registerAuditLog(a *app) {
	a.pipeline.Register(&plugin.Plugin{
		ID:      "audit-log-pre",
		Name:    "Order Audit Logger (pre)",
		Type:    domain.HookPreOrder,
		Version: "1.0.0",
		Enabled: true,
		Run: func(ctx context.Context, pc *plugin.Context) error {
			if pc.Order != nil {
				a.log.Info("router", "order submitted", map[string]any{"symbol": pc.Order.NormalizedSymbol(), "side": string(pc.Order.Side)})
			}
			return nil
		},
	})
	a.pipeline.Register(&plugin.Plugin{
		ID:      "audit-log-post",
		Name:    "Order Audit Logger (post)",
		Type:    domain.HookPostOrder,
		Version: "1.0.0",
		Enabled: true,
		Run: func(ctx context.Context, pc *plugin.Context) error {
			if pc.Result != nil {
				a.log.Info("router", "order result", map[string]any{"order_id": pc.Result.OrderID, "success": pc.Result.Success})
			}
			return nil
		},
	})
}

func drainEvents(ctx context.Context, a *app) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.aggregator.Events():
			if !ok {
				return
			}
			if ev.Stalled != nil {
				a.log.Warn("serve", "stream stalled", map[string]any{"broker_id": ev.Stalled.BrokerID})
			}
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&servePaperTrading, "paper", false, "intercept every order with the paper-trading simulator instead of placing it live")
}
