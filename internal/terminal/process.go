package terminal

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Process is the slice of process metadata classification needs.
type Process struct {
	PID  int32
	PPID int32
	Name string
	// CreateTime is in milliseconds since the epoch.
	CreateTime int64
}

// Processes looks up live processes.
type Processes interface {
	Lookup(pid int32) (Process, error)
}

// SystemProcesses reads the OS process table through gopsutil.
type SystemProcesses struct{}

// Lookup implements Processes.
func (SystemProcesses) Lookup(pid int32) (Process, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return Process{}, fmt.Errorf("process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil {
		return Process{}, fmt.Errorf("process %d name: %w", pid, err)
	}
	// Parent and start time are best effort; protected processes may deny them.
	ppid, _ := p.Ppid()
	created, _ := p.CreateTime()
	return Process{PID: pid, PPID: ppid, Name: name, CreateTime: created}, nil
}

// Ancestry returns pid and its parents, nearest first, at most depth entries.
// The walk stops at the first process that cannot be read or at a cycle.
func Ancestry(procs Processes, pid int32, depth int) []Process {
	var chain []Process
	seen := make(map[int32]struct{}, depth)
	for pid > 0 && len(chain) < depth {
		if _, dup := seen[pid]; dup {
			break
		}
		seen[pid] = struct{}{}

		p, err := procs.Lookup(pid)
		if err != nil {
			break
		}
		chain = append(chain, p)
		if p.PPID == pid {
			break
		}
		pid = p.PPID
	}
	return chain
}
