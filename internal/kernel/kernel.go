// Package kernel implements the discrete-event core: the virtual
// clock, the time-priority queue, message routing with latency
// injection, agent lifecycle, and the broadcast/event-bus hooks every
// other component (exchange, strategies, gateway) is driven through.
// Exactly one tick executes at a time; no agent handler may suspend
// mid-execution, which is what makes a run reproducible given the
// same configuration and seeds.
package kernel

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/agent"
	"github.com/realmfikri/marketsim/internal/bus"
	"github.com/realmfikri/marketsim/internal/latency"
	"github.com/realmfikri/marketsim/internal/queue"
	"github.com/realmfikri/marketsim/internal/types"
)

// mutatingTypes are the message categories that emit an ORDER_LOG bus
// event synchronously at send time, per spec.
var mutatingTypes = map[types.MessageType]bool{
	types.LimitOrderMsg:  true,
	types.MarketOrderMsg: true,
	types.CancelOrderMsg: true,
	types.ModifyOrderMsg: true,
}

// Observer is invoked once after every tick completes; the terminal
// renderer and other external collaborators hook in here.
type Observer func(nowNs int64)

// Kernel owns the virtual clock, the time queue, the agent registry,
// the exchange identity, and the pub/sub event bus.
//
// Tick() normally runs on a single driver goroutine (RunWallPaced or
// RunFast), but the human-trader agent is also reachable from the
// HTTP/WS gateway's own goroutines, which call Send/ScheduleWake
// concurrently with that driver. mu guards the clock, the time queue,
// the agent registry and the running flag (now, q, agents, agentOrder,
// running) so the two never race over them; the latency model, the
// observer list and the bus are not guarded by it. It is only ever held around
// the queue/map operations themselves, never across an agent
// callback, so an agent's own Send/ScheduleWake calls during Receive
// or Wake (made from the tick goroutine) never re-enter it.
type Kernel struct {
	mu sync.Mutex

	now        int64
	tickNs     int64
	q          *queue.TimeQueue
	agents     map[types.AgentID]agent.Agent
	agentOrder []types.AgentID
	exchangeID types.AgentID
	latency    latency.Model
	bus        *bus.Bus
	observers  []Observer
	log        *zap.Logger
	running    bool
}

// Config configures a Kernel.
type Config struct {
	// TickMs is the simulated advance per wall-clock tick; default
	// 200ms if zero.
	TickMs int64
	// Latency is the latency model; nil means zero latency
	// everywhere.
	Latency latency.Model
	Log     *zap.Logger
}

const defaultTickMs = 200

// New builds a Kernel. exchangeID names which agent id is the
// exchange; it must be registered via Attach before Start.
func New(cfg Config, exchangeID types.AgentID) *Kernel {
	tickMs := cfg.TickMs
	if tickMs <= 0 {
		tickMs = defaultTickMs
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Kernel{
		tickNs:     tickMs * 1_000_000,
		q:          queue.New(),
		agents:     make(map[types.AgentID]agent.Agent),
		exchangeID: exchangeID,
		latency:    cfg.Latency,
		bus:        bus.New(log),
		log:        log,
	}
}

// Attach registers an agent under id and calls its Attach hook. It
// must be called for every agent, including the exchange, before
// Start.
func (k *Kernel) Attach(id types.AgentID, a agent.Agent) {
	k.mu.Lock()
	k.agents[id] = a
	k.agentOrder = append(k.agentOrder, id)
	sort.Slice(k.agentOrder, func(i, j int) bool { return k.agentOrder[i] < k.agentOrder[j] })
	k.mu.Unlock()
	a.Attach(k)
}

// ExchangeID returns the id advertised as the exchange.
func (k *Kernel) ExchangeID() types.AgentID { return k.exchangeID }

// NowNs returns the current virtual clock reading.
func (k *Kernel) NowNs() int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now
}

// Bus exposes the event bus for external collaborators (C7) to
// subscribe to TRADE, ORDER_LOG, ORDER_REJECTED, MARKET_DATA and
// ORACLE_TICK events.
func (k *Kernel) Bus() *bus.Bus { return k.bus }

// OnTick registers a post-tick observer, invoked once per tick after
// all due messages have been delivered.
func (k *Kernel) OnTick(obs Observer) {
	k.observers = append(k.observers, obs)
}

// Send computes network and compute delay for a message from `from`
// to `to` and enqueues it for delivery at now + delay + extraDelayNs.
// For order-mutating message types it also emits a synchronous
// ORDER_LOG bus event at send time, before any delivery occurs.
func (k *Kernel) Send(from, to types.AgentID, typ types.MessageType, body interface{}, extraDelayNs int64) types.Message {
	delay := k.networkDelay(from, to)
	if to == k.exchangeID && from != k.exchangeID && k.latency != nil {
		delay += k.latency.ComputeAt(to)
	}

	k.mu.Lock()
	now := k.now
	msg := types.Message{From: from, To: to, Type: typ, Body: body, At: now + delay + extraDelayNs}
	k.q.Push(msg)
	k.mu.Unlock()

	if mutatingTypes[typ] {
		k.bus.Emit(bus.Event{
			Type: bus.OrderLogEvent,
			OrderLog: &bus.OrderLog{
				At:   now,
				From: from,
				To:   to,
				Type: typ,
				Body: body,
			},
		})
	}

	return msg
}

func (k *Kernel) networkDelay(from, to types.AgentID) int64 {
	if k.latency == nil {
		return 0
	}
	return k.latency.Delay(from, to)
}

// ScheduleWake enqueues a WAKEUP message addressed to agentID, to be
// delivered at `at`. Wake-ups never pass through the latency model.
func (k *Kernel) ScheduleWake(agentID types.AgentID, at int64) {
	k.mu.Lock()
	k.q.Push(types.Message{From: types.OutOfBandSender, To: agentID, Type: types.WakeupMsg, At: at})
	k.mu.Unlock()
}

// Broadcast schedules one message per non-sender agent, each stamped
// with its own latency-computed delivery time, taking the same
// latency path as a unicast Send. Recipients are visited in ascending
// agent-id order rather than Go's randomized map order, so that a
// latency model drawing from its own PRNG per recipient (e.g. downlink
// jitter) consumes that PRNG in the same sequence on every run given
// the same configuration and seed.
func (k *Kernel) Broadcast(from types.AgentID, typ types.MessageType, body interface{}, extraDelayNs int64) {
	for _, id := range k.sortedAgentIDs() {
		if id == from {
			continue
		}
		k.Send(from, id, typ, body, extraDelayNs)
	}
}

func (k *Kernel) sortedAgentIDs() []types.AgentID {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]types.AgentID, len(k.agentOrder))
	copy(ids, k.agentOrder)
	return ids
}

// Start sets the clock to startNs, invokes every agent's start hook,
// then returns; callers drive ticks with either RunWallPaced or
// RunFast. Agents are started in ascending agent-id order for the
// same replay-determinism reason as Broadcast.
func (k *Kernel) Start(startNs int64) {
	k.mu.Lock()
	k.now = startNs
	k.running = true
	k.mu.Unlock()

	for _, id := range k.sortedAgentIDs() {
		k.agents[id].Start(startNs)
	}
}

// Stop halts further delivery and invokes every agent's stop hook, in
// ascending agent-id order; any still-queued messages are discarded.
func (k *Kernel) Stop() {
	k.mu.Lock()
	k.running = false
	k.mu.Unlock()

	for _, id := range k.sortedAgentIDs() {
		k.agents[id].Stop()
	}

	k.mu.Lock()
	k.q.Clear()
	k.mu.Unlock()
}

// Running reports whether Start has been called without a matching
// Stop.
func (k *Kernel) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// Tick advances the virtual clock by one tick increment, delivers
// every message now due, and invokes the post-tick observers exactly
// once. The queue is locked only around each individual peek/pop, not
// across delivery, so an agent's own Send/ScheduleWake calls made from
// inside Receive/Wake (on this same goroutine) never deadlock against
// it, while a concurrent gateway-goroutine Send still serializes
// correctly against the pop it races with. While the kernel is not
// running (before Start or after Stop), Tick does nothing.
func (k *Kernel) Tick() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.now += k.tickNs
	now := k.now
	k.mu.Unlock()

	for {
		k.mu.Lock()
		msg, ok := k.q.Peek()
		if !ok || msg.At > now {
			k.mu.Unlock()
			break
		}
		msg, _ = k.q.Pop()
		k.mu.Unlock()
		k.deliver(now, msg)
	}
	for _, obs := range k.observers {
		obs(now)
	}
}

func (k *Kernel) deliver(now int64, msg types.Message) {
	k.mu.Lock()
	recipient, ok := k.agents[msg.To]
	k.mu.Unlock()
	if !ok {
		k.log.Debug("dropping message to unknown recipient", zap.Int64("to", int64(msg.To)))
		return
	}
	if msg.Type == types.WakeupMsg {
		recipient.Wake(now)
		return
	}
	recipient.Receive(now, msg)
}
