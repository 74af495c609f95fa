package vm

import "github.com/vertexdlt/wasmcore/types"

// Gas tracks consumption against a limit for one ExecContext. It is purely
// additive to the spec: a nil GasPolicy (the default) never consults it and
// metering has no effect on an otherwise-conforming module.
type Gas struct {
	Used  uint64
	Limit uint64
}

// GasPolicy prices each executed instruction and each memory.grow, letting
// a host bound a module's CPU and memory footprint without changing
// WebAssembly semantics for any module that never hits the limit.
type GasPolicy interface {
	GetCostForOp(op types.Opcode) uint64
	GetCostForMalloc(pages int) uint64
}

// FreeGasPolicy charges nothing; execution behaves as if gas metering
// didn't exist.
type FreeGasPolicy struct{}

// GetCostForOp returns 0 for every opcode.
func (p *FreeGasPolicy) GetCostForOp(op types.Opcode) uint64 { return 0 }

// GetCostForMalloc returns 0 regardless of page count.
func (p *FreeGasPolicy) GetCostForMalloc(pages int) uint64 { return 0 }

// SimpleGasPolicy charges 1 gas per instruction and 1024 gas per page grown.
type SimpleGasPolicy struct{}

// GetCostForOp returns 1 for every opcode.
func (p *SimpleGasPolicy) GetCostForOp(op types.Opcode) uint64 { return 1 }

// GetCostForMalloc returns 1024 gas per page.
func (p *SimpleGasPolicy) GetCostForMalloc(pages int) uint64 { return uint64(pages) * 1024 }
