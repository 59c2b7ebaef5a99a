package terminal

import "strings"

// Candidate is a window under classification. Ancestry is resolved lazily
// since most rules never need it.
type Candidate struct {
	Window Window

	dir *Directory
}

// Rule recognises one kind of window by what its process can do, never by
// its title alone.
type Rule interface {
	Name() string
	Match(c *Candidate) (Class, bool)
}

// bridgeRule recognises bridge windows: anything this process owns, or a
// window of another copy of this executable carrying the bridge title. Other
// windows of that executable, such as the hook prompt, are not bridges.
type bridgeRule struct{}

func (bridgeRule) Name() string { return "bridge" }

func (bridgeRule) Match(c *Candidate) (Class, bool) {
	d := c.dir
	if c.Window.PID == d.self {
		return ClassBridge, true
	}
	if d.selfExe != "" && strings.EqualFold(c.Window.Exe, d.selfExe) &&
		isBridgeTitle(c.Window.Title, d.titlePrefix) {
		return ClassBridge, true
	}
	return ClassOther, false
}

// isBridgeTitle matches "base" and "base - label".
func isBridgeTitle(title, base string) bool {
	if base == "" {
		return false
	}
	return title == base || strings.HasPrefix(title, base+" - ")
}

// trackedRule accepts windows that host a tracked client process: the window
// owner is the client itself or one of its ancestors.
type trackedRule struct{}

func (trackedRule) Name() string { return "tracked" }

func (trackedRule) Match(c *Candidate) (Class, bool) {
	d := c.dir
	if s, ok := d.sessions[c.Window.Handle]; ok && s.PID == c.Window.PID {
		return ClassEligible, true
	}
	for _, s := range d.sessions {
		if s.ClientPID == 0 {
			continue
		}
		for _, p := range Ancestry(d.procs, s.ClientPID, d.maxDepth) {
			if p.PID == c.Window.PID {
				return ClassEligible, true
			}
		}
	}
	return ClassOther, false
}

// hostRule accepts windows owned by a known terminal host executable.
type hostRule struct{}

func (hostRule) Name() string { return "host" }

func (hostRule) Match(c *Candidate) (Class, bool) {
	exe := c.Window.Exe
	if exe == "" {
		p, err := c.dir.procs.Lookup(c.Window.PID)
		if err != nil {
			return ClassOther, false
		}
		exe = p.Name
	}
	if _, ok := c.dir.hosts[strings.ToLower(exe)]; ok {
		return ClassEligible, true
	}
	return ClassOther, false
}

// DefaultRules is the classification chain; first match wins.
func DefaultRules() []Rule {
	return []Rule{bridgeRule{}, trackedRule{}, hostRule{}}
}
