package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControlFile(t *testing.T) {
	data := []byte("Speakers|uid-1\nHeadphones|uid-2\n\n")
	entries, err := ParseControlFile(data)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "Speakers", UID: "uid-1"}, {Name: "Headphones", UID: "uid-2"}}, entries)
}

func TestParseControlFileSkipsCommentLines(t *testing.T) {
	data := []byte("#generation|abc-123\nSpeakers|uid-1\n")
	entries, err := ParseControlFile(data)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "Speakers", UID: "uid-1"}}, entries)
}

func TestParseControlFileRejectsMalformedLine(t *testing.T) {
	_, err := ParseControlFile([]byte("no-pipe-here\n"))
	assert.Error(t, err)
}

func TestFormatControlFileRoundtrips(t *testing.T) {
	entries := []Entry{{Name: "A", UID: "1"}, {Name: "B", UID: "2"}}
	data := FormatControlFile(entries)
	got, err := ParseControlFile(data)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestRingPathSanitizesReservedChars(t *testing.T) {
	p := RingPath("/var/run/radioform", `bad:"name/uid`)
	assert.NotContains(t, p, `:`)
	assert.Contains(t, p, "bad__name_uid")
}

func freshReader(hb uint64) HeartbeatReader {
	return func(string) (uint64, bool) { return hb, true }
}

func TestReconcileCreatesFreshNewEntry(t *testing.T) {
	r := New()
	rec := r.Reconcile([]Entry{{Name: "Speakers", UID: "uid-1"}}, freshReader(1))
	assert.Equal(t, []Entry{{Name: "Speakers", UID: "uid-1"}}, rec.Create)
	assert.Empty(t, rec.Destroy)
	r.Apply(rec)
	assert.Equal(t, []string{"uid-1"}, r.Live())
}

func TestReconcileDoesNotCreateWithoutFreshHeartbeat(t *testing.T) {
	r := New()
	staleReader := func(string) (uint64, bool) { return 0, false }
	rec := r.Reconcile([]Entry{{Name: "Speakers", UID: "uid-1"}}, staleReader)
	assert.Empty(t, rec.Create)
}

func TestReconcileDestroysMissingEntry(t *testing.T) {
	r := New()
	r.Apply(Reconciliation{Create: []Entry{{Name: "Speakers", UID: "uid-1"}}})

	rec := r.Reconcile(nil, freshReader(1))
	assert.Equal(t, []string{"uid-1"}, rec.Destroy)
}

func TestReconcileDestroysOnStaleHeartbeat(t *testing.T) {
	r := New()
	fixed := time.Unix(1000, 0)
	r.now = func() time.Time { return fixed }
	r.Apply(Reconciliation{Create: []Entry{{Name: "Speakers", UID: "uid-1"}}})

	// First reconcile observes heartbeat value 1, freshly.
	r.Reconcile([]Entry{{Name: "Speakers", UID: "uid-1"}}, freshReader(1))

	// Advance time past the freshness window without the heartbeat
	// value changing.
	r.now = func() time.Time { return fixed.Add(FreshnessWindow + time.Second) }
	rec := r.Reconcile([]Entry{{Name: "Speakers", UID: "uid-1"}}, freshReader(1))
	assert.Equal(t, []string{"uid-1"}, rec.Destroy)
}

func TestReconcileCooldownPreventsImmediateRecreate(t *testing.T) {
	r := New()
	fixed := time.Unix(2000, 0)
	r.now = func() time.Time { return fixed }

	r.Apply(Reconciliation{Create: []Entry{{Name: "Speakers", UID: "uid-1"}}})
	destroyRec := r.Reconcile(nil, freshReader(1))
	r.Apply(destroyRec)
	assert.Contains(t, r.cooldown, "uid-1")

	// Re-offering the same uid immediately must not recreate it.
	rec := r.Reconcile([]Entry{{Name: "Speakers", UID: "uid-1"}}, freshReader(2))
	assert.Empty(t, rec.Create)

	// After the cooldown window elapses, it can be recreated.
	r.now = func() time.Time { return fixed.Add(CooldownWindow + time.Second) }
	rec = r.Reconcile([]Entry{{Name: "Speakers", UID: "uid-1"}}, freshReader(2))
	assert.Equal(t, []Entry{{Name: "Speakers", UID: "uid-1"}}, rec.Create)
}
