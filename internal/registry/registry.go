package registry

import (
	"sync"
	"time"
)

// FreshnessWindow and CooldownWindow are the reconciliation timers
// from spec.md §4.7: a per-uid ring heartbeat must have changed within
// FreshnessWindow to be considered live, and a destroyed uid cannot be
// recreated until CooldownWindow has elapsed.
const (
	FreshnessWindow = 5 * time.Second
	CooldownWindow  = 10 * time.Second
)

// HeartbeatReader reads the current heartbeat counter for a uid's ring
// (cmd/radioform-host supplies the ring's driver heartbeat), along with
// whether the ring could be read at all. The registry
// is decoupled from internal/ring's concrete Handle type so it can be
// unit tested without real shared-memory segments.
type HeartbeatReader func(uid string) (heartbeat uint64, ok bool)

type heartbeatState struct {
	lastValue uint64
	seenAt    time.Time
}

// Registry tracks which uids currently have a live endpoint, per-uid
// heartbeat freshness, and per-uid cooldown, reconciling them against
// a control file's entries once per tick.
type Registry struct {
	mu sync.Mutex

	live      map[string]Entry
	heartbeat map[string]heartbeatState
	cooldown  map[string]time.Time

	now func() time.Time
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		live:      make(map[string]Entry),
		heartbeat: make(map[string]heartbeatState),
		cooldown:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Reconciliation is the result of one Reconcile call: uids to create
// and uids to destroy. Apply processes the destroys first, then the
// creates.
type Reconciliation struct {
	Create  []Entry
	Destroy []string
}

// Reconcile compares entries (the control file's current contents)
// against the live set, using readHeartbeat to judge per-uid
// freshness. It returns the set of creates and destroys the caller
// must apply; Apply then commits that decision to the Registry's
// internal bookkeeping.
func (r *Registry) Reconcile(entries []Entry, readHeartbeat HeartbeatReader) Reconciliation {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	wanted := make(map[string]Entry, len(entries))
	for _, e := range entries {
		wanted[e.UID] = e
	}

	var result Reconciliation

	for uid := range r.live {
		if _, stillWanted := wanted[uid]; stillWanted && r.freshLocked(uid, now, readHeartbeat) {
			continue
		}
		result.Destroy = append(result.Destroy, uid)
	}

	for uid, e := range wanted {
		if _, alreadyLive := r.live[uid]; alreadyLive {
			continue
		}
		if r.inCooldownLocked(uid, now) {
			continue
		}
		if !r.freshLocked(uid, now, readHeartbeat) {
			continue
		}
		result.Create = append(result.Create, e)
	}

	return result
}

// Apply commits a Reconciliation's decisions: destroyed uids are
// removed from the live set and stamped with a cooldown; created uids
// are added to the live set.
func (r *Registry) Apply(rec Reconciliation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, uid := range rec.Destroy {
		delete(r.live, uid)
		delete(r.heartbeat, uid)
		r.cooldown[uid] = now
	}
	for _, e := range rec.Create {
		r.live[e.UID] = e
	}
}

// freshLocked reports whether uid's ring heartbeat has changed within
// FreshnessWindow, reading it via readHeartbeat and updating the
// cached per-uid state. Must be called with r.mu held.
func (r *Registry) freshLocked(uid string, now time.Time, readHeartbeat HeartbeatReader) bool {
	hb, ok := readHeartbeat(uid)
	if !ok {
		return false
	}
	state, seen := r.heartbeat[uid]
	if !seen || hb != state.lastValue {
		r.heartbeat[uid] = heartbeatState{lastValue: hb, seenAt: now}
		return true
	}
	if now.Sub(state.seenAt) > FreshnessWindow {
		return false
	}
	return true
}

// inCooldownLocked reports whether uid was destroyed within
// CooldownWindow and so cannot yet be recreated.
func (r *Registry) inCooldownLocked(uid string, now time.Time) bool {
	destroyedAt, ok := r.cooldown[uid]
	if !ok {
		return false
	}
	return now.Sub(destroyedAt) < CooldownWindow
}

// Live returns the uids currently tracked as live endpoints.
func (r *Registry) Live() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	uids := make([]string, 0, len(r.live))
	for uid := range r.live {
		uids = append(uids, uid)
	}
	return uids
}
