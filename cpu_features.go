package main

import (
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// CPUFeatures summarizes the host CPU for sizing the compute workers and for
// the startup banner.
type CPUFeatures struct {
	Name          string
	PhysicalCores int
	LogicalCores  int

	// x86-64
	HasAVX2    bool
	HasFMA     bool
	HasAVX512F bool

	// ARM64
	HasNEON bool
	HasSVE  bool
}

var detectCPUOnce = sync.OnceValue(func() CPUFeatures {
	c := cpuid.CPU
	return CPUFeatures{
		Name:          c.BrandName,
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
		HasAVX2:       c.Supports(cpuid.AVX2),
		HasFMA:        c.Supports(cpuid.FMA3),
		HasAVX512F:    c.Supports(cpuid.AVX512F),
		HasNEON:       c.Supports(cpuid.ASIMD),
		HasSVE:        c.Supports(cpuid.SVE),
	}
})

// DetectCPUFeatures reports the host CPU capabilities. The result is
// computed once per process.
func DetectCPUFeatures() CPUFeatures {
	return detectCPUOnce()
}

// GetCPUName returns the CPU brand string, or "unknown" when the CPU does
// not report one.
func GetCPUName() string {
	if name := DetectCPUFeatures().Name; name != "" {
		return name
	}
	return "unknown"
}
