// Package nnx configuration constants
package nnx

// Cluster memory map (PULP open cluster and Siracusa)
const (
	// Accelerator HWPE register window base address
	PulpHWPEBase = 0x00201000

	// Cluster control unit base address
	PulpClusterCtrlBase = 0x00200000

	// Size of the HWPE register window mapped by MMIO backends
	HWPEWindowSize = 0x100

	// Size of the cluster control window mapped by MMIO backends
	ClusterCtrlWindowSize = 0x100
)

// Astral memory map
const (
	AstralHWPEBase        = 0x50201000
	AstralClusterCtrlBase = 0x50200000
)

// Platform bring-up parameters
const (
	// Default interconnect max stall cycles programmed by Open
	DefaultMaxStall = 8

	// Wrap modulus of the hardware job id counter
	JobIDModulus = 256
)

// Cost model parameters
const (
	// Cluster clock assumed by cost estimates
	DefaultClockHz = 370_000_000

	// Cycles spent on acquiring, programming and starting one job
	JobOverheadCycles = 120
)
