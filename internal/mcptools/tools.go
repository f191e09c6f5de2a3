// Package mcptools exposes the UPS to MCP clients as a small set of tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/control"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Device is the poller surface the tools read from.
type Device interface {
	Device() (status.Identity, status.Rating, bool)
	ReadRegisters(ctx context.Context, address, count uint16) ([]uint16, error)
}

// Controller is the command surface the tools write through.
type Controller interface {
	StartBatteryTest(ctx context.Context) error
	CancelBatteryTest(ctx context.Context) error
	SetDelay(ctx context.Context, d control.Delay, seconds int) error
	ReadDelay(ctx context.Context, d control.Delay) (uint32, error)
}

// Registration pairs an MCP tool definition with its handler function.
type Registration struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// RegisterAll adds every registration to s.
func RegisterAll(s *server.MCPServer, registrations []Registration) {
	for _, r := range registrations {
		s.AddTool(r.Tool, r.Handler)
	}
}

// NewServer builds an MCP server carrying every UPS tool.
func NewServer(version string, store *status.Store, dev Device, ctl Controller, logger zerolog.Logger) *server.MCPServer {
	s := server.NewMCPServer("ever-ups", version, server.WithToolCapabilities(false))
	RegisterAll(s, Tools(store, dev, ctl, logger))
	return s
}

// Tools returns every UPS tool registration.
func Tools(store *status.Store, dev Device, ctl Controller, logger zerolog.Logger) []Registration {
	return []Registration{
		upsStatus(store),
		upsDevice(dev),
		upsReadRegisters(dev, logger),
		upsBatteryTest(ctl, logger),
		upsDelayGet(ctl),
		upsDelaySet(ctl, logger),
	}
}

func upsStatus(store *status.Store) Registration {
	tool := mcp.NewTool("ups_status",
		mcp.WithDescription("Current UPS state: link health and every decoded field of the last successful poll. Absent values are null."),
	)

	handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		link := store.Link()
		out := map[string]any{
			"health": status.HealthName(link.Health),
			"link":   link,
		}
		if snap := store.Snapshot(); snap != nil {
			out["at"] = snap.At
			out["fields"] = snap.Fields()
		}
		return jsonResult(out), nil
	}

	return Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func upsDevice(dev Device) Registration {
	tool := mcp.NewTool("ups_device",
		mcp.WithDescription("UPS identity (manufacturer, model, firmware, serial) and nameplate rating."),
	)

	handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, rating, fetched := dev.Device()
		return jsonResult(map[string]any{
			"identity": id,
			"rating":   rating,
			"fetched":  fetched,
		}), nil
	}

	return Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func upsReadRegisters(dev Device, logger zerolog.Logger) Registration {
	tool := mcp.NewTool("ups_read_registers",
		mcp.WithDescription("Read raw holding registers from the UPS."),
		mcp.WithNumber("address",
			mcp.Required(),
			mcp.Description("Start address (0-65535)"),
		),
		mcp.WithNumber("count",
			mcp.Description(fmt.Sprintf("Number of words, 1-%d (default 1)", poller.MaxReadWords)),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		address := req.GetInt("address", -1)
		count := req.GetInt("count", 1)
		if address < 0 || address > 0xFFFF {
			return errorResult("address must be 0-65535"), nil
		}
		if count < 1 || count > poller.MaxReadWords {
			return errorResult(fmt.Sprintf("count must be 1-%d", poller.MaxReadWords)), nil
		}

		regs, err := dev.ReadRegisters(ctx, uint16(address), uint16(count))
		if err != nil {
			logger.Warn().Err(err).Int("address", address).Msg("mcp register read failed")
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"address":   address,
			"registers": regs,
		}), nil
	}

	return Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func upsBatteryTest(ctl Controller, logger zerolog.Logger) Registration {
	tool := mcp.NewTool("ups_battery_test",
		mcp.WithDescription("Start or cancel a UPS battery test."),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("start or cancel"),
			mcp.Enum("start", "cancel"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action := req.GetString("action", "")

		var err error
		switch action {
		case "start":
			err = ctl.StartBatteryTest(ctx)
		case "cancel":
			err = ctl.CancelBatteryTest(ctx)
		default:
			return errorResult(`action must be "start" or "cancel"`), nil
		}
		if err != nil {
			logger.Warn().Err(err).Str("action", action).Msg("mcp battery test failed")
			return errorResult(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("battery test %s command sent", action)), nil
	}

	return Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func delayParam() mcp.ToolOption {
	return mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Timer name"),
		mcp.Enum(control.ShutdownDelay.Key, control.StartupDelay.Key),
	)
}

func upsDelayGet(ctl Controller) Registration {
	tool := mcp.NewTool("ups_delay_get",
		mcp.WithDescription("Read a UPS delay timer from the device, in seconds."),
		delayParam(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, ok := control.DelayByKey(req.GetString("name", ""))
		if !ok {
			return errorResult("unknown delay timer"), nil
		}
		v, err := ctl.ReadDelay(ctx, d)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{"name": d.Key, "seconds": v}), nil
	}

	return Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func upsDelaySet(ctl Controller, logger zerolog.Logger) Registration {
	tool := mcp.NewTool("ups_delay_set",
		mcp.WithDescription(fmt.Sprintf("Set a UPS delay timer, %d-%d seconds.", control.MinDelay, control.MaxDelay)),
		delayParam(),
		mcp.WithNumber("seconds",
			mcp.Required(),
			mcp.Description("Delay in seconds"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, ok := control.DelayByKey(req.GetString("name", ""))
		if !ok {
			return errorResult("unknown delay timer"), nil
		}
		seconds := req.GetInt("seconds", -1)
		if err := ctl.SetDelay(ctx, d, seconds); err != nil {
			logger.Warn().Err(err).Str("delay", d.Key).Int("seconds", seconds).Msg("mcp delay set failed")
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{"name": d.Key, "seconds": seconds}), nil
	}

	return Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// ---- results ----

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error marshaling result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func errorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("error: %s", msg))
}
