package planspec

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadFile reads one CUE plan script from disk and compiles it. The file
// must define a top-level "plan" struct.
func LoadFile(path string) (*PlanSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan script: %w", err)
	}
	return LoadString(string(data))
}

// LoadString compiles a CUE plan script from source text.
func LoadString(src string) (*PlanSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v.LookupPath(cue.ParsePath("plan")))
}
