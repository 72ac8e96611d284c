// Package routing implements the routing brain (C9): tracks the OS's
// physical device list and default-output selection, keeps the
// physical<->virtual mapping the registry's control file encodes, and
// forwards the virtual endpoint's volume to its physical counterpart.
// Grounded on the teacher's malgo context/device-enumeration use
// (`ctx.Devices`, `getDeviceNativeSampleRate`); the debounce/cooldown
// state machine is new, following spec.md §4.9's note that volume
// forwarding exists specifically to prevent feedback loops with the OS.
package routing

import (
	"sync"
	"time"

	"github.com/agalue/radioform/internal/registry"
)

// virtualSuffix derives a virtual endpoint's uid deterministically
// from its physical counterpart's, per spec.md §3's
// `"<physical-uid>-suffix"` rule.
const virtualSuffix = "-radioform"

// VolumeChangeThreshold and VolumeForwardCooldown bound volume
// forwarding: a change smaller than the threshold is ignored, and no
// more than one forward happens per cooldown window, per spec.md §4.9.
const (
	VolumeChangeThreshold = 0.001
	VolumeForwardCooldown = 500 * time.Millisecond
)

// PhysicalDevice describes one OS-enumerated physical output device.
type PhysicalDevice struct {
	ID   string
	Name string
}

// VirtualEndpoint mirrors one physical device under its derived uid.
type VirtualEndpoint struct {
	UID        string
	Name       string
	PhysicalID string
}

// DeviceWatcher abstracts the OS device-enumeration and default-output
// APIs the routing brain depends on. Malgo's portable surface has no
// default-output or device-list-changed notification (those are
// CoreAudio/WASAPI-specific and out of scope per spec.md §1), so the
// concrete implementation is supplied by the host command; this
// interface is the seam that lets the brain's logic be tested without
// one.
type DeviceWatcher interface {
	Physicals() ([]PhysicalDevice, error)
}

// VolumeController abstracts writing a device's volume; it has no
// method for reading a volume or listening for changes. The one
// implementation in this module, cmd/radioform-host's
// softwareVolumeController, records each level in memory and registers
// no master-channel or per-channel volume listeners.
type VolumeController interface {
	SetVolume(deviceID string, level float64) error
}

// DeriveVirtualUID derives a virtual endpoint's uid from its physical
// counterpart's, deterministically (uids must be derived, not random).
func DeriveVirtualUID(physicalID string) string {
	return physicalID + virtualSuffix
}

// Brain tracks the current physical<->virtual mapping and the
// volume-forwarding debounce state.
type Brain struct {
	mu sync.Mutex

	watcher    DeviceWatcher
	volume     VolumeController
	autoSwitch bool

	virtual map[string]VirtualEndpoint // physical id -> virtual endpoint

	lastVolume    map[string]float64 // virtual uid -> last forwarded volume
	lastForwardAt map[string]time.Time

	now func() time.Time
}

// New returns a Brain driven by watcher and volume, with autoSwitch
// controlling whether HandleDefaultOutputChanged ever redirects the OS
// default back to a virtual endpoint.
func New(watcher DeviceWatcher, volume VolumeController, autoSwitch bool) *Brain {
	return &Brain{
		watcher:       watcher,
		volume:        volume,
		autoSwitch:    autoSwitch,
		virtual:       make(map[string]VirtualEndpoint),
		lastVolume:    make(map[string]float64),
		lastForwardAt: make(map[string]time.Time),
		now:           time.Now,
	}
}

// SyncDevices re-enumerates physicals via the watcher, derives a
// virtual endpoint for each, and returns the control-file entries the
// registry should be told to reconcile against. Called on the OS's
// "device list changed" notification.
func (b *Brain) SyncDevices() ([]registry.Entry, error) {
	physicals, err := b.watcher.Physicals()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool, len(physicals))
	entries := make([]registry.Entry, 0, len(physicals))
	for _, p := range physicals {
		uid := DeriveVirtualUID(p.ID)
		seen[p.ID] = true
		b.virtual[p.ID] = VirtualEndpoint{UID: uid, Name: p.Name, PhysicalID: p.ID}
		entries = append(entries, registry.Entry{Name: p.Name, UID: uid})
	}
	for physicalID := range b.virtual {
		if !seen[physicalID] {
			delete(b.virtual, physicalID)
		}
	}

	return entries, nil
}

// VirtualFor returns the virtual endpoint mirroring physicalID, if any.
func (b *Brain) VirtualFor(physicalID string) (VirtualEndpoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.virtual[physicalID]
	return v, ok
}

// PhysicalForVirtual returns the physical id a virtual uid mirrors, if
// any virtual endpoint currently wraps it.
func (b *Brain) PhysicalForVirtual(virtualUID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for physicalID, v := range b.virtual {
		if v.UID == virtualUID {
			return physicalID, true
		}
	}
	return "", false
}

// HandleDefaultOutputChanged implements the "default output changed"
// transition: if newDefaultID is a physical device with a
// corresponding virtual endpoint and auto-switch is enabled, it
// reports that the OS default should be set back to the virtual
// endpoint and that the renderer should rebind to that physical.
// redirectToVirtualUID is empty when no redirect is called for.
func (b *Brain) HandleDefaultOutputChanged(newDefaultID string) (redirectToVirtualUID string, rebindPhysicalID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.autoSwitch {
		return "", ""
	}
	v, ok := b.virtual[newDefaultID]
	if !ok {
		// newDefaultID is already one of our virtual endpoints, or an
		// untracked device; nothing to redirect.
		return "", ""
	}
	return v.UID, newDefaultID
}

// ForwardVolume applies spec.md §4.9's debounce/cooldown to a volume
// change observed on virtualUID, mirroring it to the physical device
// 1:1 if the change clears VolumeChangeThreshold and
// VolumeForwardCooldown has elapsed since the last forward. Returns
// whether the volume was actually forwarded.
func (b *Brain) ForwardVolume(virtualUID string, level float64) (bool, error) {
	b.mu.Lock()
	physicalID, ok := b.physicalForVirtualLocked(virtualUID)
	if !ok {
		b.mu.Unlock()
		return false, nil
	}

	now := b.now()
	last, seen := b.lastVolume[virtualUID]
	if seen {
		delta := level - last
		if delta < 0 {
			delta = -delta
		}
		if delta < VolumeChangeThreshold {
			b.mu.Unlock()
			return false, nil
		}
	}
	if at, ok := b.lastForwardAt[virtualUID]; ok && now.Sub(at) < VolumeForwardCooldown {
		b.mu.Unlock()
		return false, nil
	}

	b.lastVolume[virtualUID] = level
	b.lastForwardAt[virtualUID] = now
	b.mu.Unlock()

	return true, b.volume.SetVolume(physicalID, level)
}

func (b *Brain) physicalForVirtualLocked(virtualUID string) (string, bool) {
	for physicalID, v := range b.virtual {
		if v.UID == virtualUID {
			return physicalID, true
		}
	}
	return "", false
}
