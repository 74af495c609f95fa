package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/wasm"
)

// storageResolver hosts a tiny key/value store behind two imported
// functions, "storage_set"/"storage_get", reading and writing the keys and
// values through the calling instance's own linear memory — the same
// host-storage shape as the teacher's original main.go (a map keyed by
// bytes read out of guest memory via pointer+length pairs).
type storageResolver struct {
	store map[string][]byte
}

func newStorageResolver() *storageResolver { return &storageResolver{store: map[string][]byte{}} }

func readMem(caller *Instance, ptr, size int32) []byte {
	mem, _ := caller.ExportedMemory("mem")
	return mem.Data[ptr : ptr+size]
}

func (r *storageResolver) ResolveFunc(module, name string, sig types.FuncType) (HostFunction, bool) {
	if module != "env" {
		return nil, false
	}
	switch name {
	case "storage_set":
		return func(ctx *ExecContext, caller *Instance, args []types.Value) ([]types.Value, error) {
			key := readMem(caller, args[0].I32(), args[1].I32())
			value := readMem(caller, args[2].I32(), args[3].I32())
			r.store[string(key)] = append([]byte(nil), value...)
			return nil, nil
		}, true
	case "storage_get":
		return func(ctx *ExecContext, caller *Instance, args []types.Value) ([]types.Value, error) {
			key := readMem(caller, args[0].I32(), args[1].I32())
			value := r.store[string(key)]
			mem, _ := caller.ExportedMemory("mem")
			copy(mem.Data[args[2].I32():], value)
			return []types.Value{types.I32Value(int32(len(value)))}, nil
		}, true
	default:
		return nil, false
	}
}
func (r *storageResolver) ResolveGlobal(module, name string, gt types.GlobalType) (*GlobalCell, bool) {
	return nil, false
}
func (r *storageResolver) ResolveMemory(module, name string) (*Memory, bool) { return nil, false }
func (r *storageResolver) ResolveTable(module, name string) (*Table, bool)  { return nil, false }

// TestHostStorageRoundTrip builds a module that imports storage_set/
// storage_get, writes a key and value into its own memory, calls
// storage_set, then storage_get into a different memory region, and checks
// the value round-trips through the host side-table.
func TestHostStorageRoundTrip(t *testing.T) {
	b := newModuleBuilder()
	b.setMemory(1, 0, false)
	b.exportMemory("mem")

	tiSet := b.addType([]types.ValueType{types.I32, types.I32, types.I32, types.I32}, nil)
	fSet := b.importFunc("env", "storage_set", tiSet)

	tiGet := b.addType([]types.ValueType{types.I32, types.I32, types.I32}, []types.ValueType{types.I32})
	fGet := b.importFunc("env", "storage_get", tiGet)

	// put(keyPtr, keySize, valPtr, valSize): calls storage_set directly.
	tiPut := b.addType([]types.ValueType{types.I32, types.I32, types.I32, types.I32}, nil)
	fPut := b.addFunc(tiPut, nil, cat(
		opIdx(types.OpLocalGet, 0), opIdx(types.OpLocalGet, 1),
		opIdx(types.OpLocalGet, 2), opIdx(types.OpLocalGet, 3),
		opIdx(types.OpCall, fSet),
	))
	b.exportFunc("put", fPut)

	// fetch(keyPtr, keySize, outPtr) -> size
	tiFetch := b.addType([]types.ValueType{types.I32, types.I32, types.I32}, []types.ValueType{types.I32})
	fFetch := b.addFunc(tiFetch, nil, cat(
		opIdx(types.OpLocalGet, 0), opIdx(types.OpLocalGet, 1), opIdx(types.OpLocalGet, 2),
		opIdx(types.OpCall, fGet),
	))
	b.exportFunc("fetch", fFetch)

	m, err := wasm.Parse(b.build())
	require.NoError(t, err)
	resolver := newStorageResolver()
	inst, err := Instantiate(m, resolver)
	require.NoError(t, err)

	mem, ok := inst.ExportedMemory("mem")
	require.True(t, ok)
	copy(mem.Data[0:], "greeting")
	copy(mem.Data[16:], "hello world")

	putIdx, _, _ := inst.ExportedFunc("put")
	_, err = Execute(inst, putIdx, []types.Value{
		types.I32Value(0), types.I32Value(8),
		types.I32Value(16), types.I32Value(11),
	}, nil)
	require.NoError(t, err)

	fetchIdx, _, _ := inst.ExportedFunc("fetch")
	res, err := Execute(inst, fetchIdx, []types.Value{
		types.I32Value(0), types.I32Value(8), types.I32Value(64),
	}, nil)
	require.NoError(t, err)
	size := res.Results[0].I32()
	assert.Equal(t, int32(11), size)
	assert.Equal(t, "hello world", string(mem.Data[64:64+size]))
}
