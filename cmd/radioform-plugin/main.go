// Command radioform-plugin is the out-of-process virtual-endpoint
// harness: it captures from a real physical input device, standing in
// for the OS audio daemon's mixed-output callback (spec.md §1 puts
// genuine OS plug-in entry points out of scope), and drives the
// virtual endpoint state machine (C6) against its ring segment.
// Structured like cmd/radioform-host: parse flags, wire one real-time
// callback, wait for a signal, shut down within a bounded grace
// period.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"github.com/agalue/radioform/internal/config"
	"github.com/agalue/radioform/internal/deviceio"
	"github.com/agalue/radioform/internal/logging"
	"github.com/agalue/radioform/internal/plugin"
)

func main() {
	cfg, err := config.ParsePluginFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "radioform-plugin: %v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	log := logging.New(level, cfg.LogFormat, "plugin")
	log.Info("starting, uid=%s name=%q ring=%s", cfg.UID, cfg.Name, cfg.RingPath())

	if err := os.MkdirAll(cfg.ControlDir, 0o755); err != nil {
		log.Fatal("creating control dir: %v", err)
	}

	audioCtx, err := deviceio.NewContext()
	if err != nil {
		log.Fatal("init audio context: %v", err)
	}
	defer audioCtx.Close()

	endpoint := plugin.NewEndpoint(cfg.RingPath(), cfg.RingConfig())

	format := plugin.StreamFormat{
		Type:     plugin.SampleFloat32,
		Channels: int(cfg.Channels),
		Planar:   false,
	}

	var captureID unsafe.Pointer
	if cfg.CaptureDevice != "" {
		captureID, err = deviceio.FindCaptureDeviceID(audioCtx, cfg.CaptureDevice)
		if err != nil {
			log.Fatal("resolve capture device: %v", err)
		}
	}

	capture, err := deviceio.OpenCapture(audioCtx, cfg.SampleRate, cfg.Channels, cfg.PeriodMs, captureID, func(data []byte) {
		endpoint.WriteMixedOutput(data, format, int(cfg.SampleRate))
	})
	if err != nil {
		log.Fatal("open capture device: %v", err)
	}
	defer capture.Close()

	if err := endpoint.StartIO(); err != nil {
		log.Warn("initial ring attach failed, endpoint stays in the error state until the next start: %v", err)
	}
	defer endpoint.StopIO()

	if err := capture.Start(); err != nil {
		log.Fatal("start capture device: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("ready, state=%s", endpoint.State())

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()
	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			_ = capture.Stop()
			log.Info("shutdown complete")
			return
		case <-statusTicker.C:
			log.Debug("state=%s format-changes=%d convert-failures=%d attach-failures=%d recoveries=%d",
				endpoint.State(),
				endpoint.Counters.FormatChanges.Load(),
				endpoint.Counters.ConvertFailures.Load(),
				endpoint.Counters.AttachFailures.Load(),
				endpoint.Counters.RecoveryCount.Load())
		}
	}
}
