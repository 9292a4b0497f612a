package guard

import (
	"os"
	"strconv"
	"strings"
)

// cgroupMemoryLimit returns the container memory limit in bytes, checking
// cgroup v2 first and falling back to v1. Returns 0 if neither file is
// present or the v2 file reads "max" (no limit configured).
func cgroupMemoryLimit() int64 {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		s := strings.TrimSpace(string(data))
		if s != "max" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				return v
			}
		}
		return 0
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil {
			return v
		}
	}

	return 0
}
