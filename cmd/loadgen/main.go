// Command loadgen drives the kernel/exchange path at the fastest
// speed RunFast allows, submitting synthetic limit-order and cancel
// traffic from a pool of random-walk agents and reporting throughput.
// Ported from the teacher's cmd/loadgen, which drove engine.OrderBook
// directly; this version goes through the same agent/kernel/exchange
// stack a live run would use, so its numbers reflect the real
// message-passing overhead rather than the bare book's.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/bus"
	"github.com/realmfikri/marketsim/internal/exchange"
	"github.com/realmfikri/marketsim/internal/kernel"
	"github.com/realmfikri/marketsim/internal/latency"
	"github.com/realmfikri/marketsim/internal/strategy"
	"github.com/realmfikri/marketsim/internal/types"
)

func main() {
	ticks := flag.Int("ticks", 5000, "number of kernel ticks to run")
	symbol := flag.String("symbol", "SIM", "symbol to trade")
	tickSize := flag.Int64("tick-size", 1, "tick size for limit prices")
	tickMs := flag.Int64("tick-ms", 200, "kernel virtual tick size in ms")
	numBidBots := flag.Int("bid-bots", 4, "number of RandomBidBot agents")
	numAskBots := flag.Int("ask-bots", 4, "number of RandomAskBot agents")
	numSpreadBots := flag.Int("spread-bots", 1, "number of SpreadCaptureBot agents")
	seed := flag.Int64("seed", 1, "base seed for bot PRNGs")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write heap profile to file")
	pyroscopeAddr := flag.String("pyroscope-addr", "", "pyroscope server address; empty disables continuous profiling")
	flag.Parse()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "marketsim.loadgen",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "pyroscope start failed: %v\n", err)
		} else {
			defer profiler.Stop()
		}
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	log := zap.NewNop()

	var matches int64
	b := bus.New(log)
	b.On(bus.TradeEvent, func(bus.Event) { matches++ })

	const exchangeID types.AgentID = 1
	k := kernel.New(kernel.Config{TickMs: *tickMs, Latency: latency.Zero{}, Log: log}, exchangeID)

	ex := exchange.New(exchangeID, exchange.Config{Symbol: *symbol, Bus: b, Log: log})
	k.Attach(exchangeID, ex)

	var nextID types.AgentID = 2
	for i := 0; i < *numBidBots; i++ {
		k.Attach(nextID, strategy.NewRandomBidBot(nextID, *symbol, *tickSize, *seed+int64(nextID)))
		nextID++
	}
	for i := 0; i < *numAskBots; i++ {
		k.Attach(nextID, strategy.NewRandomAskBot(nextID, *symbol, *tickSize, *seed+int64(nextID)))
		nextID++
	}
	for i := 0; i < *numSpreadBots; i++ {
		k.Attach(nextID, strategy.NewSpreadCaptureBot(nextID, *symbol, *tickSize, *seed+int64(nextID)))
		nextID++
	}

	k.Start(0)

	// Seed one resting order on each side so the random-walk bots have
	// a mid price to anchor around from the first tick; an empty book
	// otherwise never bootstraps since every bot's placement logic
	// requires an observed mid.
	const seedSender types.AgentID = 999999
	k.Send(seedSender, exchangeID, types.LimitOrderMsg, types.LimitOrder{ID: "seed-bid", Symbol: *symbol, Side: types.Buy, Price: 10000 * *tickSize, Quantity: 1000}, 0)
	k.Send(seedSender, exchangeID, types.LimitOrderMsg, types.LimitOrder{ID: "seed-ask", Symbol: *symbol, Side: types.Sell, Price: 10010 * *tickSize, Quantity: 1000}, 0)

	start := time.Now()
	k.RunFast(*ticks)
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err == nil {
			defer f.Close()
			_ = pprof.WriteHeapProfile(f)
		}
	}

	ticksPerSec := float64(*ticks) / elapsed.Seconds()
	fmt.Printf("ran %d ticks in %s (%.0f ticks/s)\n", *ticks, elapsed.Truncate(time.Millisecond), ticksPerSec)
	fmt.Printf("matched %d trades (%.0f trades/s)\n", matches, float64(matches)/elapsed.Seconds())
	fmt.Printf("config: symbol=%s tick-size=%d tick-ms=%d bots=%d/%d/%d\n",
		*symbol, *tickSize, *tickMs, *numBidBots, *numAskBots, *numSpreadBots)
}
