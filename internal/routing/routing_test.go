package routing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatcher struct {
	physicals []PhysicalDevice
	err       error
}

func (f *fakeWatcher) Physicals() ([]PhysicalDevice, error) {
	return f.physicals, f.err
}

type fakeVolumeController struct {
	set map[string]float64
	err error
}

func newFakeVolumeController() *fakeVolumeController {
	return &fakeVolumeController{set: make(map[string]float64)}
}

func (f *fakeVolumeController) SetVolume(deviceID string, level float64) error {
	if f.err != nil {
		return f.err
	}
	f.set[deviceID] = level
	return nil
}

func TestDeriveVirtualUIDIsDeterministic(t *testing.T) {
	assert.Equal(t, DeriveVirtualUID("phys-1"), DeriveVirtualUID("phys-1"))
	assert.NotEqual(t, DeriveVirtualUID("phys-1"), DeriveVirtualUID("phys-2"))
}

func TestSyncDevicesDerivesVirtualPerPhysical(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{
		{ID: "phys-1", Name: "Speakers"},
		{ID: "phys-2", Name: "Headphones"},
	}}
	b := New(w, newFakeVolumeController(), true)

	entries, err := b.SyncDevices()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	v, ok := b.VirtualFor("phys-1")
	require.True(t, ok)
	assert.Equal(t, DeriveVirtualUID("phys-1"), v.UID)
	assert.Equal(t, "Speakers", v.Name)
}

func TestSyncDevicesDropsStaleVirtualOnUnplug(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	b := New(w, newFakeVolumeController(), true)

	_, err := b.SyncDevices()
	require.NoError(t, err)
	_, ok := b.VirtualFor("phys-1")
	require.True(t, ok)

	w.physicals = nil
	entries, err := b.SyncDevices()
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, ok = b.VirtualFor("phys-1")
	assert.False(t, ok)
}

func TestSyncDevicesPropagatesWatcherError(t *testing.T) {
	w := &fakeWatcher{err: errors.New("enumeration failed")}
	b := New(w, newFakeVolumeController(), true)
	_, err := b.SyncDevices()
	assert.Error(t, err)
}

func TestHandleDefaultOutputChangedRedirectsWhenAutoSwitchOn(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	b := New(w, newFakeVolumeController(), true)
	_, err := b.SyncDevices()
	require.NoError(t, err)

	virtualUID, rebindPhysical := b.HandleDefaultOutputChanged("phys-1")
	assert.Equal(t, DeriveVirtualUID("phys-1"), virtualUID)
	assert.Equal(t, "phys-1", rebindPhysical)
}

func TestHandleDefaultOutputChangedNoopWhenAutoSwitchOff(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	b := New(w, newFakeVolumeController(), false)
	_, err := b.SyncDevices()
	require.NoError(t, err)

	virtualUID, rebindPhysical := b.HandleDefaultOutputChanged("phys-1")
	assert.Empty(t, virtualUID)
	assert.Empty(t, rebindPhysical)
}

func TestHandleDefaultOutputChangedNoopForUntrackedDevice(t *testing.T) {
	b := New(&fakeWatcher{}, newFakeVolumeController(), true)
	virtualUID, rebindPhysical := b.HandleDefaultOutputChanged("unknown")
	assert.Empty(t, virtualUID)
	assert.Empty(t, rebindPhysical)
}

func TestForwardVolumeForwardsFirstChange(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	vc := newFakeVolumeController()
	b := New(w, vc, true)
	_, err := b.SyncDevices()
	require.NoError(t, err)

	forwarded, err := b.ForwardVolume(DeriveVirtualUID("phys-1"), 0.5)
	require.NoError(t, err)
	assert.True(t, forwarded)
	assert.Equal(t, 0.5, vc.set["phys-1"])
}

func TestForwardVolumeIgnoresSubThresholdChange(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	vc := newFakeVolumeController()
	b := New(w, vc, true)
	_, err := b.SyncDevices()
	require.NoError(t, err)

	uid := DeriveVirtualUID("phys-1")
	fixed := time.Unix(3000, 0)
	b.now = func() time.Time { return fixed }

	forwarded, err := b.ForwardVolume(uid, 0.500)
	require.NoError(t, err)
	require.True(t, forwarded)

	b.now = func() time.Time { return fixed.Add(VolumeForwardCooldown + time.Second) }
	forwarded, err = b.ForwardVolume(uid, 0.5003)
	require.NoError(t, err)
	assert.False(t, forwarded, "change smaller than VolumeChangeThreshold must be ignored")
}

func TestForwardVolumeRespectsCooldown(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	vc := newFakeVolumeController()
	b := New(w, vc, true)
	_, err := b.SyncDevices()
	require.NoError(t, err)

	uid := DeriveVirtualUID("phys-1")
	fixed := time.Unix(4000, 0)
	b.now = func() time.Time { return fixed }

	forwarded, err := b.ForwardVolume(uid, 0.2)
	require.NoError(t, err)
	require.True(t, forwarded)

	// Large enough change, but still inside the cooldown window.
	forwarded, err = b.ForwardVolume(uid, 0.9)
	require.NoError(t, err)
	assert.False(t, forwarded)
	assert.Equal(t, 0.2, vc.set["phys-1"])

	b.now = func() time.Time { return fixed.Add(VolumeForwardCooldown + time.Second) }
	forwarded, err = b.ForwardVolume(uid, 0.9)
	require.NoError(t, err)
	assert.True(t, forwarded)
	assert.Equal(t, 0.9, vc.set["phys-1"])
}

func TestForwardVolumeNoopForUnknownVirtualUID(t *testing.T) {
	b := New(&fakeWatcher{}, newFakeVolumeController(), true)
	forwarded, err := b.ForwardVolume("not-tracked", 0.5)
	require.NoError(t, err)
	assert.False(t, forwarded)
}

func TestForwardVolumePropagatesControllerError(t *testing.T) {
	w := &fakeWatcher{physicals: []PhysicalDevice{{ID: "phys-1", Name: "Speakers"}}}
	vc := newFakeVolumeController()
	vc.err = errors.New("device busy")
	b := New(w, vc, true)
	_, err := b.SyncDevices()
	require.NoError(t, err)

	forwarded, err := b.ForwardVolume(DeriveVirtualUID("phys-1"), 0.7)
	assert.True(t, forwarded, "forwarded reflects the debounce decision, independent of the write outcome")
	assert.Error(t, err)
}
