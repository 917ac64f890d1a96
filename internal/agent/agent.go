// Package agent defines the runtime contract every simulation
// participant satisfies: a single interface with five methods,
// avoiding the open class hierarchies a dynamic-dispatch port of the
// original design would otherwise invite.
package agent

import "github.com/realmfikri/marketsim/internal/types"

// KernelFace is the slice of kernel behavior an agent is allowed to
// use: sending messages, scheduling its own wake-ups, and reading the
// exchange id / current time. Agents must not reach into the
// kernel's queue, registry, or other agents' state.
type KernelFace interface {
	Send(from, to types.AgentID, typ types.MessageType, body interface{}, extraDelayNs int64) types.Message
	Broadcast(from types.AgentID, typ types.MessageType, body interface{}, extraDelayNs int64)
	ScheduleWake(agentID types.AgentID, at int64)
	ExchangeID() types.AgentID
	NowNs() int64
}

// Agent is the polymorphic participant interface every strategy,
// the exchange agent, and the human-trader agent must satisfy.
type Agent interface {
	// Attach is invoked once, before Start, and gives the agent a
	// handle to the kernel.
	Attach(k KernelFace)
	// Start is invoked at kernel start; it typically schedules the
	// agent's first wake-up.
	Start(t int64)
	// Stop is invoked at kernel stop.
	Stop()
	// Receive is invoked for each non-wake message addressed to this
	// agent.
	Receive(t int64, msg types.Message)
	// Wake is invoked when a WAKEUP message is delivered to this
	// agent.
	Wake(t int64)
}

// Base provides the Attach/Stop boilerplate every agent shares;
// embedding it lets a concrete agent implement only Start/Receive/
// Wake. It owns no state beyond the kernel handle and the agent's own
// id, per the runtime
// contract's requirement that agents never read or mutate other
// agents' state.
type Base struct {
	Kernel KernelFace
	ID     types.AgentID
}

// NewBase builds a Base bound to id; Attach still must be called by
// the kernel before Start.
func NewBase(id types.AgentID) Base {
	return Base{ID: id}
}

func (b *Base) Attach(k KernelFace) { b.Kernel = k }
func (b *Base) Stop()               {}

// Send is a convenience wrapper matching the kernel's Send signature,
// filling in this agent's id as the sender.
func (b *Base) Send(to types.AgentID, typ types.MessageType, body interface{}) types.Message {
	return b.Kernel.Send(b.ID, to, typ, body, 0)
}

// ScheduleWake schedules a WAKEUP for this agent at the given virtual
// time.
func (b *Base) ScheduleWake(at int64) {
	b.Kernel.ScheduleWake(b.ID, at)
}
