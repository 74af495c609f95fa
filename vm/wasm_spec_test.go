package vm

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/vertexdlt/wasmcore/types"
	"github.com/vertexdlt/wasmcore/wasm"
)

// TestSuite and friends mirror wast2json's JSON command format: each .wast
// fixture becomes one JSON command log plus a set of binary modules, driving
// assert_return/assert_trap/action commands against the instantiated module.
type TestSuite struct {
	SourceFilename string    `json:"source_filename"`
	Commands       []Command `json:"commands"`
}

type Command struct {
	Type       string      `json:"type"`
	Line       int         `json:"line"`
	Filename   string      `json:"filename"`
	Name       string      `json:"name"`
	Action     Action      `json:"action"`
	Text       string      `json:"text"`
	ModuleType string      `json:"module_type"`
	Expected   []ValueInfo `json:"expected"`
}

type Action struct {
	Type     string      `json:"type"`
	Module   string      `json:"module"`
	Field    string      `json:"field"`
	Args     []ValueInfo `json:"args"`
	Expected []ValueInfo `json:"expected"`
}

type ValueInfo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// specTestResolver backs the spec test suite's "spectest" and "env" host
// module, grounded on the teacher's TestResolver: print functions that
// discard their arguments, plus a couple of fixed globals/tables the
// official suite imports by convention.
type specTestResolver struct{}

func (r *specTestResolver) ResolveFunc(module, name string, sig types.FuncType) (HostFunction, bool) {
	if module != "spectest" {
		return nil, false
	}
	switch name {
	case "print", "print_i32", "print_i32_f32", "print_f32", "print_f64", "print_f64_f64":
		return func(ctx *ExecContext, caller *Instance, args []types.Value) ([]types.Value, error) {
			return nil, nil
		}, true
	default:
		return nil, false
	}
}
func (r *specTestResolver) ResolveGlobal(module, name string, gt types.GlobalType) (*GlobalCell, bool) {
	if module == "spectest" {
		return &GlobalCell{Type: gt}, true
	}
	return nil, false
}
func (r *specTestResolver) ResolveMemory(module, name string) (*Memory, bool) {
	if module == "spectest" {
		return &Memory{Data: make([]byte, PageSize), Max: 2, HasMax: true}, true
	}
	return nil, false
}
func (r *specTestResolver) ResolveTable(module, name string) (*Table, bool) {
	if module == "spectest" {
		funcs := make([]int64, 10)
		for i := range funcs {
			funcs[i] = -1
		}
		return &Table{Funcs: funcs, Max: 20, HasMax: true}, true
	}
	return nil, false
}

func parseValueInfo(vi ValueInfo) types.Value {
	switch vi.Type {
	case "i32":
		v, _ := strconv.ParseUint(vi.Value, 10, 32)
		return types.I32Value(int32(uint32(v)))
	case "i64":
		v, _ := strconv.ParseUint(vi.Value, 10, 64)
		return types.I64Value(int64(v))
	case "f32":
		v, _ := strconv.ParseUint(vi.Value, 10, 32)
		return types.ValueFromBits(types.F32, uint64(uint32(v)))
	case "f64":
		v, _ := strconv.ParseUint(vi.Value, 10, 64)
		return types.ValueFromBits(types.F64, v)
	default:
		return types.Value{}
	}
}

func invokeWithAction(t *testing.T, inst *Instance, action *Action) (ExecutionResult, error) {
	idx, _, ok := inst.ExportedFunc(action.Field)
	if !ok {
		t.Fatalf("function not found %s", action.Field)
	}
	args := make([]types.Value, len(action.Args))
	for i, a := range action.Args {
		args[i] = parseValueInfo(a)
	}
	return Execute(inst, idx, args, nil)
}

// TestWasmSuite drives the official WebAssembly 1.0 test suite through
// Instantiate/Execute, the same oracle shape as the teacher's test (wast2json
// fixtures turned into JSON command logs), generalized to the new API. It
// needs `wast2json` on PATH and a ./test_suite directory of .wast fixtures
// neither of which ships with this module, so it skips itself when either is
// absent rather than failing on an environment it can't assume.
func TestWasmSuite(t *testing.T) {
	if _, err := exec.LookPath("wast2json"); err != nil {
		t.Skip("wast2json not available")
	}
	if _, err := os.Stat("./test_suite"); err != nil {
		t.Skip("./test_suite fixtures not present")
	}

	tests := []string{
		"i32", "i64", "f32", "f64",
		"br", "br_if", "br_table",
		"call", "call_indirect",
		"global", "local_get", "local_set", "local_tee",
		"memory", "memory_grow", "memory_size",
		"block", "address", "return", "select", "loop", "if",
		"fac", "forward", "func",
		"int_exprs", "int_literals", "labels",
		"left-to-right", "load", "nop", "stack", "store", "switch",
		"traps", "type", "unreachable", "unwind",
		"start", "func_ptrs", "const", "table", "break-drop",
		"conversions", "names",
	}

	for _, name := range tests {
		name := name
		t.Run(name, func(t *testing.T) {
			wast := fmt.Sprintf("./test_suite/%s.wast", name)
			jsonFile := fmt.Sprintf("./test_suite/%s.json", name)
			if err := exec.Command("wast2json", wast, "-o", jsonFile).Run(); err != nil {
				t.Fatalf("wast2json %s: %v", name, err)
			}

			raw, err := os.ReadFile(jsonFile)
			if err != nil {
				t.Fatal(err)
			}
			var suite TestSuite
			if err := json.Unmarshal(raw, &suite); err != nil {
				t.Fatal(err)
			}

			var inst, trapInst *Instance
			for _, cmd := range suite.Commands {
				switch cmd.Type {
				case "module":
					data, err := os.ReadFile(fmt.Sprintf("./test_suite/%s", cmd.Filename))
					if err != nil {
						t.Error(err)
						continue
					}
					m, err := wasm.Parse(data)
					if err != nil {
						t.Errorf("parse %s: %v", cmd.Filename, err)
						continue
					}
					inst, err = Instantiate(m, &specTestResolver{})
					if err != nil {
						t.Errorf("instantiate %s: %v", cmd.Filename, err)
					}
					trapInst = inst

				case "assert_return", "action":
					if cmd.Action.Type != "invoke" {
						continue
					}
					res, err := invokeWithAction(t, inst, &cmd.Action)
					if err != nil {
						t.Errorf("%s line %d: %v", name, cmd.Line, err)
						continue
					}
					if len(cmd.Expected) == 0 {
						continue
					}
					exp := parseValueInfo(cmd.Expected[0])
					if exp.Bits() != res.Results[0].Bits() {
						t.Errorf("%s field %s line %d: expected %v, got %v", name, cmd.Action.Field, cmd.Line, exp, res.Results[0])
					}

				case "assert_trap":
					_, err := invokeWithAction(t, trapInst, &cmd.Action)
					if err == nil {
						t.Errorf("%s line %d: expected trap %q, got none", name, cmd.Line, cmd.Text)
						continue
					}
					tr, ok := err.(*types.Trap)
					if !ok {
						t.Errorf("%s line %d: expected a trap, got %v", name, cmd.Line, err)
						continue
					}
					if tr.Code.String() != cmd.Text && cmd.Text != "undefined element" {
						t.Errorf("%s line %d: expected trap %q, got %q", name, cmd.Line, cmd.Text, tr.Code.String())
					}

				case "assert_invalid", "assert_malformed", "assert_uninstantiable", "assert_unlinkable", "assert_exhaustion":
					// not exercised here: these assert that a module fails to
					// load, which is covered separately in the wasm/validate
					// packages' own tests.
				}
			}
		})
	}
}
