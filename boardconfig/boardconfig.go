// Package boardconfig loads the external defaults file supplying
// strobe-delay, sync-wait, sync-phase, and clock-loss policy for each
// rack of boards (spec.md §6 "Config file").
//
// The teacher's services/config/config.go resolves an embedded per-device
// JSON blob via tinyjson and republishes it as retained bus messages — a
// RAM-constrained microcontroller choice that does not fit here: this
// config lives on the host filesystem, not in flash, and its grammar
// (`r0:r1:r2:level` per rack plus a handful of scalar keys) is not JSON.
// No example repo in the pack parses this particular colon/line format, so
// a small hand-rolled line scanner stands in for a third-party parser,
// matching the lookup-function-plus-struct-of-defaults shape of
// ConfigService rather than its serialization choice.
package boardconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dio64board/x/mathx"
	"dio64board/x/timex"
)

// Strobe holds the per-rack strobe-delay defaults: three delay values
// (r0, r1, r2) and a trigger level.
type Strobe struct {
	R0, R1, R2 uint32
	Level      uint32
}

// Config is the set of defaults loaded from one config file.
type Config struct {
	// Strobe maps rack number to its strobe-delay defaults.
	Strobe map[int]Strobe

	SyncWait  uint32
	SyncPhase uint32

	// IgnoreClockLoss downgrades a lost external clock from an error to a
	// user-warning (spec.md §7).
	IgnoreClockLoss bool
}

// Load reads and parses a config file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("boardconfig: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a config file from r.
//
// Grammar, one directive per line:
//
//	rack<N>.strobe_delay = r0:r1:r2:level
//	sync_wait = <uint32>
//	sync_phase = <uint32>
//	ignore_clock_loss = true|false
//
// Blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader) (Config, error) {
	cfg := Config{Strobe: make(map[int]Strobe)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, fmt.Errorf("boardconfig: line %d: missing '='", lineNo)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch {
		case key == "sync_wait":
			n, err := parseUint32(val)
			if err != nil {
				return Config{}, fmt.Errorf("boardconfig: line %d: sync_wait: %w", lineNo, err)
			}
			cfg.SyncWait = n
		case key == "sync_phase":
			n, err := parseUint32(val)
			if err != nil {
				return Config{}, fmt.Errorf("boardconfig: line %d: sync_phase: %w", lineNo, err)
			}
			cfg.SyncPhase = n
		case key == "ignore_clock_loss":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return Config{}, fmt.Errorf("boardconfig: line %d: ignore_clock_loss: %w", lineNo, err)
			}
			cfg.IgnoreClockLoss = b
		case strings.HasPrefix(key, "rack") && strings.HasSuffix(key, ".strobe_delay"):
			rackNum := strings.TrimSuffix(strings.TrimPrefix(key, "rack"), ".strobe_delay")
			rack, err := strconv.Atoi(rackNum)
			if err != nil {
				return Config{}, fmt.Errorf("boardconfig: line %d: bad rack number %q", lineNo, rackNum)
			}
			s, err := parseStrobe(val)
			if err != nil {
				return Config{}, fmt.Errorf("boardconfig: line %d: strobe_delay: %w", lineNo, err)
			}
			cfg.Strobe[rack] = s
		default:
			return Config{}, fmt.Errorf("boardconfig: line %d: unknown key %q", lineNo, key)
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("boardconfig: scan: %w", err)
	}
	return cfg, nil
}

func parseStrobe(val string) (Strobe, error) {
	parts := strings.Split(val, ":")
	if len(parts) != 4 {
		return Strobe{}, fmt.Errorf("expected r0:r1:r2:level, got %q", val)
	}
	nums := make([]uint32, 4)
	for i, p := range parts {
		n, err := parseUint32(p)
		if err != nil {
			return Strobe{}, err
		}
		nums[i] = n
	}
	return Strobe{R0: nums[0], R1: nums[1], R2: nums[2], Level: nums[3]}, nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// ResolveStrobe returns rack's strobe-delay defaults, if the config file
// loaded any for it.
func (c Config) ResolveStrobe(rack int) (Strobe, bool) {
	s, ok := c.Strobe[rack]
	return s, ok
}

// DelayFor picks r0/r1/r2 from a rack's strobe-delay defaults by a linked
// group's member index (0 = primary, 1 = first secondary, ...); any index
// past the third reuses r2, since the config grammar fixes the triple at
// three slots regardless of group size.
func (s Strobe) DelayFor(memberIndex int) uint32 {
	switch {
	case memberIndex <= 0:
		return s.R0
	case memberIndex == 1:
		return s.R1
	default:
		return s.R2
	}
}

// DefaultSyncWait returns the loaded sync_wait default, or, if the config
// file didn't set one, a value derived from the scan period: roughly a
// tenth of one scan period in whole microseconds, rounded up and clamped to
// [1, 1000000], so a
// caller that never saw a config file still gets a sync-wait proportional
// to how fast it's scanning rather than a fixed guess.
func (c Config) DefaultSyncWait(scanHz uint32) uint32 {
	if c.SyncWait != 0 {
		return c.SyncWait
	}
	periodUs := timex.PeriodFromHz(scanHz) / 1000
	return mathx.Clamp(mathx.CeilDiv(uint32(periodUs), 10), 1, 1_000_000)
}
