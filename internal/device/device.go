// Package device picks the compute device the model session is placed on.
package device

import (
	"os"
	"os/exec"
	"strings"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
)

// Selection is the chosen device and a human-readable reason.
type Selection struct {
	Device string `json:"device"`
	Reason string `json:"reason"`
}

// Probe abstracts host inspection so selection can be tested without a GPU.
type Probe struct {
	Stat     func(path string) error
	LookPath func(name string) (string, error)
	Getenv   func(key string) (string, bool)
}

// HostProbe inspects the real host.
func HostProbe() Probe {
	return Probe{
		Stat:     func(p string) error { _, err := os.Stat(p); return err },
		LookPath: exec.LookPath,
		Getenv:   os.LookupEnv,
	}
}

var driverNodes = []string{"/dev/nvidiactl", "/proc/driver/nvidia/version"}

// Accelerator reports whether a CUDA device appears usable, with the evidence.
func (p Probe) Accelerator() (bool, string) {
	if p.Getenv != nil {
		if v, ok := p.Getenv("CUDA_VISIBLE_DEVICES"); ok {
			v = strings.TrimSpace(v)
			if v == "" || v == "-1" {
				return false, "CUDA_VISIBLE_DEVICES hides all devices"
			}
		}
	}
	if p.Stat != nil {
		for _, n := range driverNodes {
			if p.Stat(n) == nil {
				return true, "found " + n
			}
		}
	}
	if p.LookPath != nil {
		if path, err := p.LookPath("nvidia-smi"); err == nil {
			return true, "found " + path
		}
	}
	return false, "no accelerator found"
}

// Select resolves a preference (auto, cpu, cuda) to a device. It never fails:
// a cuda preference without an accelerator falls back to cpu.
func Select(preference string, p Probe) Selection {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case CPU:
		return Selection{Device: CPU, Reason: "forced by configuration"}
	case CUDA:
		ok, why := p.Accelerator()
		if !ok {
			return Selection{Device: CPU, Reason: "cuda requested but unavailable (" + why + "); falling back to cpu"}
		}
		return Selection{Device: CUDA, Reason: "forced by configuration; " + why}
	default:
		ok, why := p.Accelerator()
		if !ok {
			return Selection{Device: CPU, Reason: why}
		}
		return Selection{Device: CUDA, Reason: why}
	}
}
