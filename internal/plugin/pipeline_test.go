package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincept/gateway/internal/domain"
)

type nullLogger struct{}

func (nullLogger) Debug(string, string, map[string]any) {}
func (nullLogger) Info(string, string, map[string]any)  {}
func (nullLogger) Warn(string, string, map[string]any)  {}
func (nullLogger) Error(string, string, map[string]any) {}

func TestPipeline_Run_ExecutesInRegistrationOrder(t *testing.T) {
	p := New(nullLogger{})
	var order []string

	p.Register(&Plugin{ID: "a", Type: domain.HookPreOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		order = append(order, "a")
		return nil
	}})
	p.Register(&Plugin{ID: "b", Type: domain.HookPreOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		order = append(order, "b")
		return nil
	}})

	pc := &Context{HookType: domain.HookPreOrder}
	p.Run(context.Background(), pc)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestPipeline_Run_SkipsDisabledPlugins(t *testing.T) {
	p := New(nullLogger{})
	ran := false
	p.Register(&Plugin{ID: "a", Type: domain.HookPreOrder, Enabled: false, Run: func(ctx context.Context, pc *Context) error {
		ran = true
		return nil
	}})

	p.Run(context.Background(), &Context{HookType: domain.HookPreOrder})
	assert.False(t, ran)
}

func TestPipeline_Run_FiltersByHookType(t *testing.T) {
	p := New(nullLogger{})
	ran := false
	p.Register(&Plugin{ID: "a", Type: domain.HookPostOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		ran = true
		return nil
	}})

	p.Run(context.Background(), &Context{HookType: domain.HookPreOrder})
	assert.False(t, ran)
}

func TestPipeline_Run_CancelStopsRemainingPlugins(t *testing.T) {
	p := New(nullLogger{})
	secondRan := false

	p.Register(&Plugin{ID: "first", Type: domain.HookPreOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		pc.Cancel(domain.OrderResult{Success: true, OrderID: "synthetic-1"})
		return nil
	}})
	p.Register(&Plugin{ID: "second", Type: domain.HookPreOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		secondRan = true
		return nil
	}})

	pc := &Context{HookType: domain.HookPreOrder}
	p.Run(context.Background(), pc)

	assert.False(t, secondRan)
	require.True(t, pc.Cancelled())
	res, ok := pc.SyntheticResult()
	require.True(t, ok)
	assert.Equal(t, "synthetic-1", res.OrderID)
	assert.Equal(t, "first", pc.CancelledBy())
}

func TestPipeline_Run_PluginErrorDoesNotStopPipeline(t *testing.T) {
	p := New(nullLogger{})
	secondRan := false

	p.Register(&Plugin{ID: "first", Type: domain.HookPreOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		return errors.New("plugin blew up")
	}})
	p.Register(&Plugin{ID: "second", Type: domain.HookPreOrder, Enabled: true, Run: func(ctx context.Context, pc *Context) error {
		secondRan = true
		return nil
	}})

	p.Run(context.Background(), &Context{HookType: domain.HookPreOrder})
	assert.True(t, secondRan)
}

func TestContext_ApplyModifications_RunsInQueueOrder(t *testing.T) {
	order := domain.OrderInput{Quantity: 10}
	pc := &Context{Order: &order}

	pc.Modify(func(o *domain.OrderInput) { o.Quantity += 5 })
	pc.Modify(func(o *domain.OrderInput) { o.Quantity *= 2 })
	pc.ApplyModifications()

	assert.Equal(t, int64(30), order.Quantity)
}

func TestPipeline_SetEnabled_TogglesByID(t *testing.T) {
	p := New(nullLogger{})
	ran := false
	p.Register(&Plugin{ID: "toggle", Type: domain.HookPreOrder, Enabled: false, Run: func(ctx context.Context, pc *Context) error {
		ran = true
		return nil
	}})

	p.SetEnabled("toggle", true)
	p.Run(context.Background(), &Context{HookType: domain.HookPreOrder})
	assert.True(t, ran)
}
