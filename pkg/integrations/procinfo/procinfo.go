// Package procinfo looks up process details by PID.
package procinfo

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// Info describes a running process.
type Info struct {
	PID     int
	Name    string
	Exe     string
	Cmdline string
}

// Lookup returns what the OS reports about pid. Fields that cannot be read
// are left empty; only a missing process is an error.
func Lookup(pid int) (*Info, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}

	info := &Info{PID: pid}
	if name, err := proc.Name(); err == nil {
		info.Name = name
	}
	if exe, err := proc.Exe(); err == nil {
		info.Exe = exe
	}
	if cmdline, err := proc.Cmdline(); err == nil {
		info.Cmdline = cmdline
	}
	return info, nil
}

// Description is a short human readable label: the process name, else the
// executable base name without extension.
func (i *Info) Description() string {
	if i == nil {
		return ""
	}
	if i.Name != "" {
		return strings.TrimSuffix(i.Name, filepath.Ext(i.Name))
	}
	if i.Exe != "" {
		base := filepath.Base(i.Exe)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ""
}

// FindByName returns the PIDs of running processes whose name equals one
// of names.
func FindByName(names ...string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var pids []int
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		if _, ok := want[name]; ok {
			pids = append(pids, int(proc.Pid))
		}
	}
	return pids, nil
}

// AnyRunning reports whether a process named like one of names is running.
func AnyRunning(names ...string) bool {
	pids, err := FindByName(names...)
	return err == nil && len(pids) > 0
}

// Describer caches process descriptions. A PID is looked up once per
// identity so a recycled PID under a different class is refreshed.
type Describer struct {
	mu     sync.Mutex
	cache  map[int]cached
	lookup func(pid int) (*Info, error)
}

type cached struct {
	identity    string
	description string
}

// NewDescriber creates a describer backed by Lookup.
func NewDescriber() *Describer {
	return &Describer{cache: make(map[int]cached), lookup: Lookup}
}

// Describe returns the description for pid, falling back to identity.
func (d *Describer) Describe(pid int, identity string) string {
	if pid <= 0 {
		return identity
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.cache[pid]; ok && c.identity == identity {
		return c.description
	}

	description := identity
	if info, err := d.lookup(pid); err == nil {
		if desc := info.Description(); desc != "" {
			description = desc
		}
	}

	if len(d.cache) > 256 {
		d.cache = make(map[int]cached)
	}
	d.cache[pid] = cached{identity: identity, description: description}
	return description
}
