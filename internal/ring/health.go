package ring

import "os"

// HeartbeatFreshWindowSeconds is the staleness timeout used throughout
// the system: a heartbeat that hasn't changed within this window is
// considered stale (registry freshness, plug-in health checks).
const HeartbeatFreshWindowSeconds = 5

// RemovePath deletes the backing file for a ring at path. It is a no-op
// if the file does not exist. Neither the registry nor
// cmd/radioform-host calls it, so a ring's file stays in place after its
// endpoint is destroyed.
func RemovePath(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists reports whether a ring's backing file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
