package strategy

import (
	"math/rand"

	"github.com/realmfikri/marketsim/internal/bus"
)

// Oracle drives the fundamental-value signal: spec treats the oracle
// as a strategy external to the core, observable only through
// ORACLE_TICK bus events, so unlike the other reference strategies it
// is not an agent.Agent at all — it has no order flow and needs no
// message routing, just a periodic push onto the bus. It hooks in via
// the kernel's tick observer rather than ScheduleWake.
type Oracle struct {
	symbol      string
	everyTicks  int64
	fundamental float64
	stepStdDev  float64
	rng         *rand.Rand
	bus         *bus.Bus
	tickCount   int64
}

// NewOracle builds an oracle that emits one ORACLE_TICK every
// everyTicks kernel ticks, starting at startFundamental and random-
// walking by a normal step with the given standard deviation.
func NewOracle(b *bus.Bus, symbol string, everyTicks int64, startFundamental, stepStdDev float64, seed int64) *Oracle {
	return &Oracle{
		symbol:      symbol,
		everyTicks:  everyTicks,
		fundamental: startFundamental,
		stepStdDev:  stepStdDev,
		rng:         rand.New(rand.NewSource(seed)),
		bus:         b,
	}
}

// OnTick is registered with kernel.OnTick; nowNs is the kernel's clock
// after delivering the tick's due messages.
func (o *Oracle) OnTick(nowNs int64) {
	o.tickCount++
	if o.everyTicks <= 0 || o.tickCount%o.everyTicks != 0 {
		return
	}
	o.fundamental += o.rng.NormFloat64() * o.stepStdDev
	o.bus.Emit(bus.Event{
		Type: bus.OracleTickEvent,
		Oracle: &bus.OracleTick{
			Ts:          nowNs,
			Symbol:      o.symbol,
			Fundamental: o.fundamental,
		},
	})
}
