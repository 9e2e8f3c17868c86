package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where codedrill stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs session cookies
	Secret string

	// Timezone is the IANA zone all schedule dates are computed in.
	// The review engine never reads wall-clock time in any other zone.
	Timezone string

	// Policy selects the interval policy variant: "step" or "difficulty".
	Policy string
	// Levels configures the step-indexed policy: interval list per step ordinal.
	Levels map[int][]int

	// RolloverMinute is how many minutes after local midnight the overdue
	// sweep fires.
	RolloverMinute int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// DefaultLevels is the step-indexed interval table used when none is configured.
func DefaultLevels() map[int][]int {
	return map[int][]int{
		1: {1, 3, 7},
		2: {3, 7, 14},
		3: {7, 14, 30},
	}
}

// ParseLevels parses a step-indexed interval table from its flag form,
// e.g. "1=1,3,7;2=3,7,14;3=7,14,30".
func ParseLevels(s string) (map[int][]int, error) {
	levels := map[int][]int{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, list, ok := strings.Cut(part, "=")
		if !ok {
			return nil, errors.Errorf("invalid level entry %q", part)
		}
		step, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || step < 1 {
			return nil, errors.Errorf("invalid step ordinal %q", key)
		}
		var intervals []int
		for _, raw := range strings.Split(list, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return nil, errors.Errorf("invalid interval %q for step %d", raw, step)
			}
			intervals = append(intervals, n)
		}
		levels[step] = intervals
	}
	if len(levels) == 0 {
		return nil, errors.New("empty level table")
	}
	return levels, nil
}

// FormatLevels renders a level table back into its flag form.
func FormatLevels(levels map[int][]int) string {
	steps := make([]int, 0, len(levels))
	for step := range levels {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		strs := make([]string, 0, len(levels[step]))
		for _, n := range levels[step] {
			strs = append(strs, strconv.Itoa(n))
		}
		parts = append(parts, fmt.Sprintf("%d=%s", step, strings.Join(strs, ",")))
	}
	return strings.Join(parts, ";")
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Policy != "step" && p.Policy != "difficulty" {
		return errors.Errorf("unknown policy %q: only 'step' and 'difficulty' are supported", p.Policy)
	}
	if len(p.Levels) == 0 {
		p.Levels = DefaultLevels()
	}

	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.RolloverMinute < 0 || p.RolloverMinute >= 24*60 {
		return errors.Errorf("rollover minute %d out of range", p.RolloverMinute)
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("codedrill_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
