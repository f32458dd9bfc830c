// Command router runs the media routing engine: the gateway node
// registry, the inter-node connector queue and event handler, and the
// periodic maintenance that keeps both clean. Room/endpoint/track state
// is created per-session by whatever transport terminates WebRTC and is
// out of scope for this process's wiring.
package main

import (
	"context"
	"log"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"
	"github.com/prometheus/client_golang/prometheus"

	routerconfig "github.com/meshsfu/router/config"
	"github.com/meshsfu/router/internal/connector"
	"github.com/meshsfu/router/internal/gateway"
	"github.com/meshsfu/router/internal/transport"
)

const (
	maintenanceInterval = 1 * time.Second
	tickPoolSize        = 32
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[routerconfig.RouterConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("router"),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	if _, err := transport.NewAPI(); err != nil {
		log.Fatalf("building media engine: %v", err)
	}

	nodes := gateway.NewStore(prometheus.DefaultRegisterer, "webrtc", cfg.GatewayZoneScoreWeight, cfg.GatewayLoadScoreWeight,
		uint8(cfg.GatewayMaxCPUPercent), uint8(cfg.GatewayMaxMemPercent), uint8(cfg.GatewayMaxDiskPercent), int64(cfg.NodeTimeoutMs))
	queue := connector.NewQueue(prometheus.DefaultRegisterer, "router", cfg.ConnectorMaxRetries, int64(cfg.ConnectorRetryBackoffMs))
	handler := connector.NewHandler(cfg.ConnectorDedupeCapacity)

	// tickPool dispatches the per-tick gateway/connector maintenance work.
	// It's a lighter-weight pool than the frame workerpool above, sized
	// for many short-lived submissions rather than long-running tasks.
	tickPool, err := ants.NewPool(tickPoolSize)
	if err != nil {
		log.Fatalf("building tick pool: %v", err)
	}
	defer tickPool.Release()

	startMaintenance(ctx, pool, tickPool, nodes, queue, handler)

	if cfg.ConfigFilePath != "" {
		if _, err := routerconfig.WatchFile(cfg.ConfigFilePath, func() {
			log.Printf("router: config file changed, restart to pick up %s", cfg.ConfigFilePath)
		}); err != nil {
			util.Log(ctx).WithError(err).Error("router: watching config file")
		}
	}

	srv.Init(ctx)

	if err := srv.Run(ctx, ""); err != nil {
		util.Log(ctx).WithError(err).Error("router: service exited")
	}
}

// startMaintenance runs gateway eviction and connector retry/drain on a
// fixed tick for as long as ctx is live. The outer loop itself is
// submitted to the frame worker pool; each tick's actual work is handed
// to tickPool so a slow tick never backs up the ticker goroutine.
func startMaintenance(ctx context.Context, pool workerpool.WorkerPool, tickPool *ants.Pool, nodes *gateway.Store, queue *connector.Queue, handler *connector.Handler) {
	tick := func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				nowMs := now.UnixMilli()
				if err := tickPool.Submit(func() {
					nodes.OnTick(nowMs)
					drainConnector(ctx, queue, handler)
				}); err != nil {
					util.Log(ctx).WithError(err).Error("router: submitting maintenance tick")
				}
			}
		}
	}
	if pool != nil {
		_ = pool.Submit(ctx, tick)
	} else {
		go tick()
	}
}

// drainConnector logs the cumulative count of connector messages dropped
// after exhausting their retries, so operators can see retry exhaustion.
// It does not pop queue or handler output.
func drainConnector(_ context.Context, queue *connector.Queue, _ *connector.Handler) {
	if dropped := queue.Dropped(); dropped > 0 {
		log.Printf("router: %d connector messages dropped after max retries", dropped)
	}
}
