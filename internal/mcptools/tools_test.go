package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/control"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockDevice struct {
	readFunc func(ctx context.Context, address, count uint16) ([]uint16, error)
}

func (m *mockDevice) Device() (status.Identity, status.Rating, bool) {
	return status.Identity{Manufacturer: "EVER", Serial: "SN1"}, status.Rating{ActivePower: 5400}, true
}

func (m *mockDevice) ReadRegisters(ctx context.Context, address, count uint16) ([]uint16, error) {
	return m.readFunc(ctx, address, count)
}

type mockController struct {
	actions []string
	delays  map[string]int
	err     error
}

func (m *mockController) StartBatteryTest(context.Context) error {
	m.actions = append(m.actions, "start")
	return m.err
}

func (m *mockController) CancelBatteryTest(context.Context) error {
	m.actions = append(m.actions, "cancel")
	return m.err
}

func (m *mockController) SetDelay(_ context.Context, d control.Delay, seconds int) error {
	if seconds < control.MinDelay || seconds > control.MaxDelay {
		return fmt.Errorf("%w: %d", control.ErrDelayRange, seconds)
	}
	m.delays[d.Key] = seconds
	return m.err
}

func (m *mockController) ReadDelay(_ context.Context, d control.Delay) (uint32, error) {
	return uint32(m.delays[d.Key]), m.err
}

var (
	_ Device     = (*mockDevice)(nil)
	_ Controller = (*mockController)(nil)
	_ Controller = (*control.Controller)(nil)
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func extractResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content entries")
	}
	tc, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("first content entry is not TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

type fixture struct {
	store *status.Store
	dev   *mockDevice
	ctl   *mockController
	tools map[string]Registration
}

func newFixture() *fixture {
	f := &fixture{
		store: &status.Store{},
		dev: &mockDevice{readFunc: func(_ context.Context, address, count uint16) ([]uint16, error) {
			return make([]uint16, count), nil
		}},
		ctl:   &mockController{delays: map[string]int{}},
		tools: map[string]Registration{},
	}
	for _, r := range Tools(f.store, f.dev, f.ctl, zerolog.Nop()) {
		f.tools[r.Tool.Name] = r
	}
	return f
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	reg, ok := f.tools[name]
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	res, err := reg.Handler(context.Background(), newCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return extractResultText(t, res)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTools_Names(t *testing.T) {
	f := newFixture()
	for _, name := range []string{"ups_status", "ups_device", "ups_read_registers", "ups_battery_test", "ups_delay_get", "ups_delay_set"} {
		_, ok := f.tools[name]
		assert.Assert(t, ok, name)
	}
	assert.Equal(t, len(f.tools), 6)
}

func TestUPSStatus(t *testing.T) {
	f := newFixture()

	text := f.call(t, "ups_status", nil)
	assert.Assert(t, strings.Contains(text, `"health": "unknown"`), text)
	assert.Assert(t, !strings.Contains(text, `"fields"`))

	f.store.Publish(&status.Snapshot{OperatingModeName: "Online"})
	f.store.SetLink(status.Link{Health: status.HealthOK})
	text = f.call(t, "ups_status", nil)
	assert.Assert(t, strings.Contains(text, `"health": "ok"`), text)
	assert.Assert(t, strings.Contains(text, `"operating_mode_name": "Online"`), text)
	assert.Assert(t, strings.Contains(text, `"runtime_remaining": null`), text)
}

func TestUPSDevice(t *testing.T) {
	text := newFixture().call(t, "ups_device", nil)
	assert.Assert(t, strings.Contains(text, `"serial": "SN1"`), text)
	assert.Assert(t, strings.Contains(text, `"active_power_w": 5400`), text)
}

func TestUPSReadRegisters(t *testing.T) {
	f := newFixture()

	text := f.call(t, "ups_read_registers", map[string]any{"address": float64(0x60), "count": float64(3)})
	assert.Assert(t, strings.Contains(text, `"address": 96`), text)

	text = f.call(t, "ups_read_registers", map[string]any{"count": float64(3)})
	assert.Equal(t, text, "error: address must be 0-65535")

	text = f.call(t, "ups_read_registers", map[string]any{"address": float64(0), "count": float64(500)})
	assert.Assert(t, strings.HasPrefix(text, "error: count must be"), text)

	f.dev.readFunc = func(context.Context, uint16, uint16) ([]uint16, error) {
		return nil, errors.New("connection refused")
	}
	text = f.call(t, "ups_read_registers", map[string]any{"address": float64(0)})
	assert.Equal(t, text, "error: connection refused")
}

func TestUPSBatteryTest(t *testing.T) {
	f := newFixture()

	assert.Equal(t, f.call(t, "ups_battery_test", map[string]any{"action": "start"}), "battery test start command sent")
	assert.Equal(t, f.call(t, "ups_battery_test", map[string]any{"action": "cancel"}), "battery test cancel command sent")
	assert.DeepEqual(t, f.ctl.actions, []string{"start", "cancel"})

	text := f.call(t, "ups_battery_test", map[string]any{"action": "pause"})
	assert.Assert(t, strings.HasPrefix(text, "error:"), text)

	f.ctl.err = errors.New("modbus exception: fc=6 code=2")
	text = f.call(t, "ups_battery_test", map[string]any{"action": "start"})
	assert.Equal(t, text, "error: modbus exception: fc=6 code=2")
}

func TestUPSDelays(t *testing.T) {
	f := newFixture()

	text := f.call(t, "ups_delay_set", map[string]any{"name": "shutdown_delay", "seconds": float64(3661)})
	assert.Assert(t, strings.Contains(text, `"seconds": 3661`), text)
	assert.Equal(t, f.ctl.delays["shutdown_delay"], 3661)

	text = f.call(t, "ups_delay_get", map[string]any{"name": "shutdown_delay"})
	assert.Assert(t, strings.Contains(text, `"seconds": 3661`), text)

	text = f.call(t, "ups_delay_set", map[string]any{"name": "shutdown_delay", "seconds": float64(70000)})
	assert.Assert(t, strings.Contains(text, "delay out of range"), text)

	text = f.call(t, "ups_delay_get", map[string]any{"name": "lunch_delay"})
	assert.Equal(t, text, "error: unknown delay timer")
}
