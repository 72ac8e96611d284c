// Command radioform-host is the host process: it reconciles the
// registry's control file against the OS's physical device list, runs
// the DSP engine over whichever virtual endpoint's ring is bound to
// the active physical output, and renders the result to that output
// device. Structured the way the teacher's cmd/assistant/main.go wires
// its components -- parse flags, build the pipeline, start, wait for a
// signal, shut down with a bounded grace period -- generalized from a
// single goroutine pipeline to a control-thread ticker plus one
// real-time device callback.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/agalue/radioform/internal/config"
	"github.com/agalue/radioform/internal/deviceio"
	"github.com/agalue/radioform/internal/dsp"
	"github.com/agalue/radioform/internal/logging"
	"github.com/agalue/radioform/internal/preset"
	"github.com/agalue/radioform/internal/registry"
	"github.com/agalue/radioform/internal/render"
	"github.com/agalue/radioform/internal/ring"
	"github.com/agalue/radioform/internal/routing"
)

// reconcileInterval is how often the host re-enumerates physical
// devices and rewrites the control file; not part of any real-time
// path, so a plain ticker is appropriate.
const reconcileInterval = 2 * time.Second

func main() {
	cfg, err := config.ParseHostFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "radioform-host: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(mustLogLevel(cfg.LogLevel), cfg.LogFormat, "host")
	log.Info("starting, control-dir=%s sample-rate=%d channels=%d", cfg.ControlDir, cfg.SampleRate, cfg.Channels)

	if err := os.MkdirAll(cfg.ControlDir, 0o755); err != nil {
		log.Fatal("creating control dir: %v", err)
	}

	audioCtx, err := deviceio.NewContext()
	if err != nil {
		log.Fatal("init audio context: %v", err)
	}
	defer audioCtx.Close()

	engine, err := dsp.Create(float64(cfg.SampleRate))
	if err != nil {
		log.Fatal("init dsp engine: %v", err)
	}
	if cfg.PresetPath != "" {
		data, err := os.ReadFile(cfg.PresetPath)
		if err != nil {
			log.Fatal("reading preset: %v", err)
		}
		p, err := preset.ParseJSON(data)
		if err != nil {
			log.Fatal("parsing preset: %v", err)
		}
		if err := engine.ApplyPreset(p); err != nil {
			log.Fatal("applying preset: %v", err)
		}
		log.Info("applied preset %q", p.Name)
	}

	renderer := render.New(nil, engine)

	rings := newRingCache(cfg.RingConfig())
	defer rings.closeAll()

	reg := registry.New()
	watcher := &malgoDeviceWatcher{ctx: audioCtx}
	volume := newSoftwareVolumeController()
	brain := routing.New(watcher, volume, cfg.AutoSwitch)

	active := &activeBinding{}

	playback, err := deviceio.OpenPlayback(audioCtx, cfg.SampleRate, cfg.Channels, 20, renderer.RenderCallback)
	if err != nil {
		log.Fatal("open playback device: %v", err)
	}
	if err := playback.Start(); err != nil {
		log.Fatal("start playback device: %v", err)
	}
	defer playback.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconcileLoop(log, cfg, reg, brain, rings, renderer, active, stop)
	}()

	log.Info("ready")
	<-sigCh
	log.Info("shutting down")
	close(stop)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("shutdown complete")
	case <-time.After(5 * time.Second):
		log.Warn("shutdown timeout, forcing exit")
	}
}

func mustLogLevel(s string) config.LogLevel {
	lvl, err := config.ParseLogLevel(s)
	if err != nil {
		return config.LogLevelInfo
	}
	return lvl
}

// activeBinding tracks which live uid the renderer is currently bound
// to, guarded separately from ringCache's own lock since the two are
// updated on different conditions (a ring closing vs. a bind choice).
type activeBinding struct {
	mu  sync.Mutex
	uid string
}

func (a *activeBinding) get() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uid
}

func (a *activeBinding) set(uid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uid = uid
}

func reconcileLoop(log *logging.Logger, cfg *config.HostConfig, reg *registry.Registry, brain *routing.Brain, rings *ringCache, renderer *render.Renderer, active *activeBinding, stop <-chan struct{}) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		entries, err := brain.SyncDevices()
		if err != nil {
			log.Warn("device enumeration failed: %v", err)
			continue
		}

		rec := reg.Reconcile(entries, rings.heartbeatReader(cfg.ControlDir))
		reg.Apply(rec)
		for _, uid := range rec.Destroy {
			rings.close(uid)
		}

		if err := writeControlFile(cfg.ControlFilePath(), reg.Live(), entries); err != nil {
			log.Warn("writing control file: %v", err)
		}

		live := reg.Live()
		if contains(live, active.get()) {
			continue
		}
		for _, uid := range live {
			h, err := rings.open(cfg.ControlDir, uid)
			if err != nil {
				continue
			}
			renderer.SwitchDevice(h)
			active.set(uid)
			log.Info("renderer bound to %s", uid)
			break
		}
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// writeControlFile stamps every rewrite with a fresh generation id
// (minted with google/uuid, written as a '#'-prefixed line that
// registry.ParseControlFile skips; nothing in this module reads it
// back), then renders the live entries filtered down to their names as
// currently reported by routing.
func writeControlFile(path string, liveUIDs []string, entries []registry.Entry) error {
	byUID := make(map[string]registry.Entry, len(entries))
	for _, e := range entries {
		byUID[e.UID] = e
	}
	live := make([]registry.Entry, 0, len(liveUIDs))
	for _, uid := range liveUIDs {
		if e, ok := byUID[uid]; ok {
			live = append(live, e)
		}
	}

	var data []byte
	data = append(data, []byte(fmt.Sprintf("#generation|%s\n", uuid.NewString()))...)
	data = append(data, registry.FormatControlFile(live)...)
	return os.WriteFile(path, data, 0o644)
}

// ringCache keeps the host's per-uid ring.Handle open between
// reconcile ticks, so the heartbeat reader and the renderer's active
// binding share one handle per uid instead of re-mapping the segment
// on every tick.
type ringCache struct {
	mu      sync.Mutex
	cfg     ring.Config
	handles map[string]*ring.Handle
}

func newRingCache(cfg ring.Config) *ringCache {
	return &ringCache{cfg: cfg, handles: make(map[string]*ring.Handle)}
}

func (c *ringCache) open(controlDir, uid string) (*ring.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[uid]; ok {
		return h, nil
	}
	path := registry.RingPath(controlDir, uid)
	h, err := ring.CreateOrOpen(path, c.cfg)
	if err != nil {
		return nil, err
	}
	c.handles[uid] = h
	return h, nil
}

func (c *ringCache) close(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[uid]; ok {
		_ = h.Close()
		delete(c.handles, uid)
	}
}

func (c *ringCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uid, h := range c.handles {
		_ = h.Close()
		delete(c.handles, uid)
	}
}

// heartbeatReader judges a uid fresh once its ring segment exists and
// can be opened; a uid with no ring file yet (no plug-in has attached)
// is not fresh, so the registry will not list it until a plug-in
// actually produces into it.
func (c *ringCache) heartbeatReader(controlDir string) registry.HeartbeatReader {
	return func(uid string) (uint64, bool) {
		path := registry.RingPath(controlDir, uid)
		if !ring.Exists(path) {
			return 0, false
		}
		h, err := c.open(controlDir, uid)
		if err != nil {
			return 0, false
		}
		return h.DriverHeartbeat(), true
	}
}

// malgoDeviceWatcher implements routing.DeviceWatcher by polling
// malgo's playback device enumeration, since malgo has no
// device-list-changed notification on its portable surface.
type malgoDeviceWatcher struct {
	ctx *deviceio.Context
}

func (w *malgoDeviceWatcher) Physicals() ([]routing.PhysicalDevice, error) {
	infos, err := w.ctx.PlaybackDevices()
	if err != nil {
		return nil, err
	}
	out := make([]routing.PhysicalDevice, 0, len(infos))
	for _, info := range infos {
		out = append(out, routing.PhysicalDevice{ID: info.ID, Name: info.Name})
	}
	return out, nil
}

// softwareVolumeController is a software-gain fallback
// routing.VolumeController: malgo exposes no per-device OS volume
// control on its portable surface, so forwarded volume changes are
// recorded here rather than applied to real hardware. It exists so
// internal/routing's debounce/cooldown logic -- the interesting part
// of C9 -- runs against a real (if inert) implementation end to end,
// not just against test fakes.
type softwareVolumeController struct {
	mu     sync.Mutex
	levels map[string]float64
}

func newSoftwareVolumeController() *softwareVolumeController {
	return &softwareVolumeController{levels: make(map[string]float64)}
}

func (v *softwareVolumeController) SetVolume(deviceID string, level float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.levels[deviceID] = level
	return nil
}
