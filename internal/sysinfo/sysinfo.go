package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo is a one-shot snapshot of the machine the patrol runs on, logged
// at startup so operators can tell deployments apart.
type HostInfo struct {
	Hostname      string
	OS            string
	CPUModel      string
	LogicalCores  int
	TotalMemoryGB float64
	MemoryUsedPct float64
}

// Collect gathers the host snapshot. Individual probe failures degrade the
// snapshot instead of failing it; only a fully unreadable host is an error.
func Collect(ctx context.Context) (HostInfo, error) {
	info := HostInfo{
		CPUModel:     "unknown",
		LogicalCores: runtime.NumCPU(),
	}

	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read host info: %w", err)
	}
	info.Hostname = h.Hostname
	info.OS = fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion)

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemoryGB = float64(v.Total) / (1 << 30)
		info.MemoryUsedPct = v.UsedPercent
	}

	return info, nil
}
