// Package controller is the host side of the channel: it finds processes
// carrying the agent, connects to their endpoints and sends commands.
package controller

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/winsys"
)

// Target is a process that has the agent loaded.
type Target struct {
	Pid    uint32 `json:"pid"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// ProcessLister returns a snapshot of running processes.
type ProcessLister func() ([]winsys.ProcessEntry, error)

// Discover returns the processes whose module list contains agentName,
// compared case-insensitively on the base name. Processes whose modules
// cannot be read are skipped.
func Discover(procs ProcessLister, mods injector.ModuleLister, agentName string) ([]Target, error) {
	entries, err := procs()
	if err != nil {
		return nil, err
	}

	var out []Target
	for _, p := range entries {
		if p.Pid == 0 {
			continue
		}
		modules, err := mods(p.Pid)
		if err != nil {
			continue
		}
		for _, m := range modules {
			if strings.EqualFold(filepath.Base(m.Name), agentName) {
				out = append(out, Target{Pid: p.Pid, Name: p.Name, Module: m.Path})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	return out, nil
}
