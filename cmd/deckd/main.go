// deckd runs the stream-controller daemon: it connects to the device,
// brings up the panel, and dispatches button and encoder events to the
// configured action bindings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/seagrayinc/soomfon-deck/internal/actions"
	"github.com/seagrayinc/soomfon-deck/internal/bindings"
	"github.com/seagrayinc/soomfon-deck/internal/config"
	"github.com/seagrayinc/soomfon-deck/internal/device"
	"github.com/seagrayinc/soomfon-deck/internal/engine"
	"github.com/seagrayinc/soomfon-deck/internal/hid"
	"github.com/seagrayinc/soomfon-deck/internal/input"
	"github.com/seagrayinc/soomfon-deck/internal/protocol"
	"github.com/seagrayinc/soomfon-deck/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to deckd.yaml (default: search ., ~/.config/deckd, /etc/deckd)")
	bindingsPath := flag.String("bindings", "", "path to bindings.json (overrides bindings_file from the config)")
	flag.Parse()

	if err := run(*configPath, *bindingsPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "deckd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, bindingsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := cfg.Logger()
	slog.SetDefault(log)

	if bindingsPath == "" {
		bindingsPath = cfg.BindingsFile
	}
	bs, err := config.LoadBindings(bindingsPath)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Options{
		DefaultTimeout:  cfg.Engine.DefaultTimeout,
		HistoryCapacity: cfg.Engine.HistoryCapacity,
		Logger:          log,
	})
	// Action adapters register here. The daemon ships the handler contract
	// only; hosts embedding the engine plug in their own adapters.

	reg := bindings.NewRegistry(eng, log)
	if err := reg.Load(bs); err != nil {
		return err
	}

	hw, err := hid.NewManager()
	if err != nil {
		return err
	}
	tm := transport.NewManager(hw, transport.Options{
		VendorID:       protocol.VendorID,
		ProductID:      protocol.ProductID,
		UsagePage:      protocol.VendorUsagePage,
		FrameSize:      protocol.ReportSize,
		InitialBackoff: cfg.Device.ReconnectBackoff,
		Logger:         log,
	})

	svc := device.NewService(tm, reg, device.Options{
		LongPress:  cfg.Device.LongPress,
		Debounce:   cfg.Device.Debounce,
		Brightness: cfg.Device.Brightness,
		Keepalive:  cfg.Device.Keepalive,
		Logger:     log,
	})
	svc.OnEvent(func(ev input.Event) {
		log.Debug("input event",
			"element", ev.Element.String(),
			"index", ev.Index,
			"type", ev.Type.String(),
			"delta", ev.Delta,
		)
	})
	reg.Observe(func(n bindings.Notice) {
		if n.Kind == bindings.Executed && n.Result != nil {
			log.Info("action executed",
				"binding", n.Binding.ID,
				"status", string(n.Result.Status),
				"duration", n.Result.Duration,
			)
		}
	})

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	log.Info("deckd starting",
		"bindings", reg.Len(),
		"action_kinds", len(actions.Kinds),
	)

	// Clear the panel and halt the device while the write path is still
	// alive. Shutdown disables reconnection first, so the run loop cannot
	// reopen the halted device before the context unwinds.
	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ctx.Done()
		if err := svc.Shutdown(); err != nil {
			log.Warn("shutdown failed", "error", err)
		}
		cancel()
	}()

	err = svc.Run(runCtx)
	log.Info("deckd stopped")
	return err
}
