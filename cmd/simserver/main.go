// Command simserver is the process entrypoint: it loads configuration,
// wires the kernel, exchange, reference strategy agents and a
// human-trader agent together, starts the external sinks and the
// HTTP/WebSocket gateway, then paces the kernel on a wall-clock timer
// until interrupted. Ported from the teacher's server/server.go main,
// generalized from "one process owns book+HTTP directly" to
// "one process owns kernel+agents, HTTP talks to one of the agents."
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/config"
	"github.com/realmfikri/marketsim/internal/exchange"
	"github.com/realmfikri/marketsim/internal/gateway"
	"github.com/realmfikri/marketsim/internal/humantrader"
	"github.com/realmfikri/marketsim/internal/kernel"
	"github.com/realmfikri/marketsim/internal/latency"
	"github.com/realmfikri/marketsim/internal/sink"
	"github.com/realmfikri/marketsim/internal/strategy"
	"github.com/realmfikri/marketsim/internal/types"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	const exchangeID types.AgentID = 1
	const humanID types.AgentID = 2

	lat := latency.NewRPCModel(latency.RPCConfig{
		UpMs:         cfg.RPCUpMs,
		DownMs:       cfg.RPCDownMs,
		ComputeMs:    cfg.ComputeMs,
		DownJitterMs: cfg.DownJitterMs,
		Seed:         cfg.Seed,
	}, exchangeID)

	k := kernel.New(kernel.Config{TickMs: cfg.TickMs, Latency: lat, Log: log}, exchangeID)

	ex := exchange.New(exchangeID, exchange.Config{
		Symbol:          cfg.Symbol,
		MarketDataDepth: cfg.MarketDataDepth,
		PipelineDelayNs: cfg.PipelineDelayNs,
		Bus:             k.Bus(),
		Log:             log,
	})
	k.Attach(exchangeID, ex)

	trader := humantrader.New(humanID, cfg.Symbol, log)
	k.Attach(humanID, trader)

	var nextID types.AgentID = 3
	for i := 0; i < 4; i++ {
		k.Attach(nextID, strategy.NewRandomBidBot(nextID, cfg.Symbol, 1, cfg.Seed+int64(nextID)))
		nextID++
	}
	for i := 0; i < 4; i++ {
		k.Attach(nextID, strategy.NewRandomAskBot(nextID, cfg.Symbol, 1, cfg.Seed+int64(nextID)))
		nextID++
	}
	k.Attach(nextID, strategy.NewSpreadCaptureBot(nextID, cfg.Symbol, 1, cfg.Seed+int64(nextID)))

	strategy.NewPnLTracker(k.Bus())

	oracle := strategy.NewOracle(k.Bus(), cfg.Symbol, 10, 100_00, 5, cfg.Seed)
	k.OnTick(oracle.OnTick)

	if cfg.SQLiteLogPath != "" {
		sqliteSink, err := sink.OpenSQLiteSink(cfg.SQLiteLogPath)
		if err != nil {
			log.Error("sqlite sink disabled", zap.Error(err))
		} else {
			sqliteSink.Attach(k.Bus())
			defer sqliteSink.Close()
		}
	}

	gw := gateway.New(trader, gateway.Config{AuthToken: cfg.AuthToken, CORSOrigin: cfg.CORSOrigin, Log: log})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: gw.Routes()}
	go func() {
		log.Info("gateway listening", zap.String("addr", cfg.ListenAddr), zap.String("symbol", cfg.Symbol))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k.Start(0)
	log.Info("kernel started", zap.Int64("tickMs", cfg.TickMs))
	k.RunWallPaced(ctx)

	log.Info("shutting down")
	k.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
