package session

import (
	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/lattice"
)

// LatticeSpec derives the frequency lattice from the hardware config.
func LatticeSpec(hw config.HardwareConfig) lattice.Spec {
	return lattice.Spec{
		CPUMinGHz:   hw.CPU.MinGHz,
		CPUMaxGHz:   hw.CPU.MaxGHz,
		CPUStepMHz:  hw.CPU.StepMHz,
		GPUMinGHz:   hw.GPU.MinGHz,
		GPUMaxGHz:   hw.GPU.MaxGHz,
		GPUStepsMHz: hw.GPU.StepsMHz,
	}
}
