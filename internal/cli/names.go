package cli

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// generateName produces an auto-generated container name of the form
// `pd-<8 random lowercase hex>` per spec §6.
func generateName() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a real OS never fails in practice; if it
		// somehow does, fall back to a fixed suffix rather than panic.
		return "pd-00000000"
	}
	return "pd-" + hex.EncodeToString(buf)
}

var memSuffix = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*([kmg]?)b?$`)

// parseMemory parses a Docker-style memory size string ("512m", "1g",
// "64k", or a bare byte count) into bytes.
func parseMemory(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := memSuffix.FindStringSubmatch(s)
	if m == nil {
		return 0, usageErrorf("invalid memory size %q (expected e.g. 512m, 1g, 65536)", s)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, usageErrorf("invalid memory size %q: %v", s, err)
	}
	mult := float64(1)
	switch strings.ToLower(m[2]) {
	case "k":
		mult = 1 << 10
	case "m":
		mult = 1 << 20
	case "g":
		mult = 1 << 30
	}
	return int64(val * mult), nil
}

// parseNanoCPUs converts a fractional core count (e.g. "1.5") into the
// engine's NanoCPUs unit (1 core == 1e9).
func parseNanoCPUs(cores float64) int64 {
	return int64(cores * 1e9)
}

// parseEnv turns a "K=V" flag list into a map.
func parseEnv(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if idx := strings.IndexByte(p, '='); idx >= 0 {
			out[p[:idx]] = p[idx+1:]
		}
	}
	return out
}
