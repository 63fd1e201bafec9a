// Package plugin implements the Plugin/Hook pipeline (spec §4.E): an
// ordered registry of hooks that may cancel or modify the data under
// consideration. Per §9, the source's callback-based cancel()/modify()
// closures become an explicit PluginContext struct interpreted by the
// pipeline after each plugin returns, avoiding captured-closure lifetime
// hazards.
package plugin

import (
	"context"
	"sync"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/ports"
)

// Modification is one field-level change a plugin requests during
// PRE_ORDER. Modifications compose left-to-right across plugins.
type Modification func(order *domain.OrderInput)

// Context carries the data under consideration for one hook invocation
// plus the cancel/modify signal a plugin can raise.
type Context struct {
	HookType domain.HookType
	Order    *domain.OrderInput
	Result   *domain.OrderResult

	cancelled    bool
	cancelledBy  string
	syntheticResult *domain.OrderResult
	mods         []Modification
}

// Cancel marks the pipeline to stop after the current plugin, recording
// which plugin cancelled and the synthetic result it supplies.
func (c *Context) Cancel(syntheticResult domain.OrderResult) {
	c.cancelled = true
	c.syntheticResult = &syntheticResult
}

// Modify queues a pre-order transformation (e.g. rounding price to tick size).
func (c *Context) Modify(m Modification) {
	c.mods = append(c.mods, m)
}

// Cancelled reports whether a plugin has cancelled this invocation.
func (c *Context) Cancelled() bool { return c.cancelled }

// SyntheticResult returns the result supplied by the cancelling plugin.
func (c *Context) SyntheticResult() (domain.OrderResult, bool) {
	if c.syntheticResult == nil {
		return domain.OrderResult{}, false
	}
	return *c.syntheticResult, true
}

// Plugin is one registered hook.
type Plugin struct {
	ID      string
	Name    string
	Type    domain.HookType
	Version string
	Enabled bool
	Run     func(ctx context.Context, pc *Context) error
}

// Pipeline is the ordered hook registry.
type Pipeline struct {
	log ports.Logger

	mu      sync.RWMutex
	plugins []*Plugin
}

// New constructs an empty Pipeline.
func New(log ports.Logger) *Pipeline {
	return &Pipeline{log: log}
}

// Register appends a plugin. Execution order is registration order.
func (p *Pipeline) Register(pl *Plugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plugins = append(p.plugins, pl)
}

// SetEnabled toggles a registered plugin by id.
func (p *Pipeline) SetEnabled(id string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range p.plugins {
		if pl.ID == id {
			pl.Enabled = enabled
			return
		}
	}
}

func (p *Pipeline) pluginsOfType(t domain.HookType) []*Plugin {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Plugin, 0, len(p.plugins))
	for _, pl := range p.plugins {
		if pl.Type == t && pl.Enabled {
			out = append(out, pl)
		}
	}
	return out
}

// Run invokes all enabled plugins of hookType in registration order. If a
// plugin calls Cancel, remaining plugins of this invocation are skipped —
// but only for PRE_ORDER does the caller (Order Router) treat a cancel as
// "abort the downstream broker call"; for other hook types Cancel has no
// special meaning beyond stopping the chain.
func (p *Pipeline) Run(ctx context.Context, pc *Context) {
	for _, pl := range p.pluginsOfType(pc.HookType) {
		if err := pl.Run(ctx, pc); err != nil {
			p.log.Error("plugin", "plugin execution failed", map[string]any{"plugin_id": pl.ID, "hook": string(pc.HookType), "error": err.Error()})
			continue
		}
		if pc.cancelled {
			pc.cancelledBy = pl.ID
			return
		}
	}
}

// CancelledBy returns the id of the plugin that cancelled this invocation,
// if any.
func (c *Context) CancelledBy() string { return c.cancelledBy }

// ApplyModifications runs every queued modification against order, in the
// order they were requested.
func (c *Context) ApplyModifications() {
	if c.Order == nil {
		return
	}
	for _, m := range c.mods {
		m(c.Order)
	}
}
