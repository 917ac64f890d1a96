// Package latency implements the kernel's latency model: a pure
// function of sender/recipient ids (plus its own PRNG state) that
// computes per-message transit and processing delays. The default
// implementation is a two-stage RPC model: uplink, in-exchange
// compute, and downlink, with optional symmetric jitter on the
// downlink leg.
package latency

import (
	"math/rand"
	"time"

	"github.com/realmfikri/marketsim/internal/types"
)

// Model computes delivery delays by agent id. A nil Model is treated
// by the kernel as zero latency everywhere.
type Model interface {
	// Delay returns the network transit delay, in nanoseconds, for a
	// message traveling from `from` to `to`.
	Delay(from, to types.AgentID) int64
	// ComputeAt returns the additional in-place processing delay, in
	// nanoseconds, incurred when `to` is the exchange and `from` is
	// not. Callers only invoke ComputeAt under that condition.
	ComputeAt(to types.AgentID) int64
}

// RPCConfig configures the two-stage RPC latency model.
type RPCConfig struct {
	// UpMs is the agent -> exchange network delay, in milliseconds.
	UpMs int64
	// DownMs is the exchange -> agent network delay, in milliseconds.
	DownMs int64
	// ComputeMs is the in-exchange processing delay, in milliseconds.
	ComputeMs int64
	// DownJitterMs is the half-width of a symmetric uniform jitter
	// applied to the downlink leg, in milliseconds. Zero disables
	// jitter.
	DownJitterMs int64
	// Seed seeds the model's own PRNG, so runs are bit-identical
	// given the same seed.
	Seed int64
}

// DefaultRPCConfig returns the spec's documented defaults.
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{UpMs: 200, DownMs: 200, ComputeMs: 300, DownJitterMs: 0}
}

// rpcModel is the default two-stage RPC latency model. It is a pure
// function of (from, to) and its own PRNG: no kernel or wall-clock
// state leaks in.
type rpcModel struct {
	cfg       RPCConfig
	exchange  types.AgentID
	rng       *rand.Rand
}

// NewRPCModel builds the default two-stage RPC latency model.
// exchangeID identifies which agent is the exchange, since uplink vs.
// downlink delay depends on which side of the call the exchange is
// on.
func NewRPCModel(cfg RPCConfig, exchangeID types.AgentID) Model {
	return &rpcModel{
		cfg:      cfg,
		exchange: exchangeID,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
}

func msToNs(ms int64) int64 {
	return ms * int64(time.Millisecond)
}

func (m *rpcModel) Delay(from, to types.AgentID) int64 {
	if to == m.exchange && from != m.exchange {
		return msToNs(m.cfg.UpMs)
	}
	if from == m.exchange && to != m.exchange {
		return msToNs(m.cfg.DownMs) + m.jitter()
	}
	return 0
}

func (m *rpcModel) ComputeAt(to types.AgentID) int64 {
	if to == m.exchange {
		return msToNs(m.cfg.ComputeMs)
	}
	return 0
}

func (m *rpcModel) jitter() int64 {
	if m.cfg.DownJitterMs <= 0 {
		return 0
	}
	halfWidth := msToNs(m.cfg.DownJitterMs)
	// Uniform in [-halfWidth, halfWidth].
	return m.rng.Int63n(2*halfWidth+1) - halfWidth
}

// Zero is a Model that always returns zero delay, equivalent to the
// kernel's "no model configured" fallback, exposed for callers that
// want to wire it explicitly (e.g. deterministic scheduling tests).
type Zero struct{}

func (Zero) Delay(_, _ types.AgentID) int64    { return 0 }
func (Zero) ComputeAt(_ types.AgentID) int64 { return 0 }
