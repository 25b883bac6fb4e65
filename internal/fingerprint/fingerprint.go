// Package fingerprint derives a stable hardware identifier for the local machine.
package fingerprint

import (
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Provider returns the hardware id sent with validation requests.
type Provider interface {
	Fingerprint() string
}

// Attributes are the machine properties a fingerprint is computed from.
// Fields that could not be read are left empty.
type Attributes struct {
	OS          string
	Arch        string
	Processor   string
	CPUCount    string
	TotalMemory string
}

func (a Attributes) String() string {
	return strings.Join([]string{a.OS, a.Arch, a.Processor, a.CPUCount, a.TotalMemory}, ":")
}

// Compute hashes the attributes into a UUIDv5 in the DNS namespace.
func Compute(attrs Attributes) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(attrs.String())).String()
}

// Host fingerprints the machine the process runs on.
type Host struct{}

func NewHost() *Host {
	return &Host{}
}

func (h *Host) Fingerprint() string {
	return Compute(h.Attributes())
}

// Attributes collects the current hardware description. It never fails.
func (h *Host) Attributes() Attributes {
	return Attributes{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		Processor:   processor(),
		CPUCount:    cpuCount(),
		TotalMemory: totalMemory(),
	}
}

func processor() string {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		slog.Debug("Processor description unavailable", "error", err)
		return ""
	}
	return strings.TrimSpace(infos[0].ModelName)
}

func cpuCount() string {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		slog.Debug("Logical core count unavailable, using runtime value", "error", err)
		n = runtime.NumCPU()
	}
	return strconv.Itoa(n)
}

func totalMemory() string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		slog.Debug("Total memory unavailable", "error", err)
		return ""
	}
	return fmt.Sprintf("%d", vm.Total)
}

// Static always reports the same hardware id.
type Static string

func (s Static) Fingerprint() string {
	return string(s)
}
