// Package policy loads rate-limit policies from CUE files.
//
// Operation classes (checkout, admin, ...) map to token bucket shapes. CUE
// rather than plain YAML because the schema constraints (positive capacity,
// positive refill) are enforced by unification at load time - a bad policy
// file fails loudly before any limiter sees it.
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"stockgate/internal/ratelimit"
)

//go:embed schema.cue
var schemaCUE string

// filePolicy is the wire shape of one policy entry.
type filePolicy struct {
	Capacity         int64 `json:"capacity"`
	RefillAmount     int64 `json:"refill_amount"`
	RefillIntervalMs int64 `json:"refill_interval_ms"`
}

// Load reads and validates a policy file, returning one ratelimit.Policy
// per operation class.
func Load(path string) (map[string]ratelimit.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	return Parse(data, path)
}

// Parse validates policy source against the embedded schema and decodes it.
// filename is used in error positions only.
func Parse(data []byte, filename string) (map[string]ratelimit.Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("parse policies: compile schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("parse policies: compile %s: %w", filename, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("parse policies: validate %s: %w", filename, err)
	}

	policiesVal := unified.LookupPath(cue.ParsePath("policies"))
	if !policiesVal.Exists() {
		return nil, fmt.Errorf("parse policies: %s declares no policies", filename)
	}

	iter, err := policiesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("parse policies: iterate policies: %w", err)
	}

	policies := make(map[string]ratelimit.Policy)
	for iter.Next() {
		var fp filePolicy
		if err := iter.Value().Decode(&fp); err != nil {
			return nil, fmt.Errorf("parse policies: decode %q: %w", iter.Label(), err)
		}
		p := ratelimit.Policy{
			Capacity:       fp.Capacity,
			RefillAmount:   fp.RefillAmount,
			RefillInterval: time.Duration(fp.RefillIntervalMs) * time.Millisecond,
		}
		// Schema constraints already guarantee this; keep the backstop so
		// Parse never hands out a policy Check would reject.
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("parse policies: %q: %w", iter.Label(), err)
		}
		policies[iter.Label()] = p
	}

	if len(policies) == 0 {
		return nil, fmt.Errorf("parse policies: %s declares no policies", filename)
	}

	return policies, nil
}
