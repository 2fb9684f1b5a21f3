package workzone

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/relaycivic/filament/internal/commit"
)

//go:embed schema.cue
var schemaCUE string

// SchemaSet holds the compiled payload schemas. One per-commit-type CUE
// definition gates the structural shape of payloads; unification against a
// closed definition rejects missing required fields, wrong primitive
// types, and unknown fields.
type SchemaSet struct {
	ctx      *cue.Context
	payloads cue.Value
}

// LoadSchemas compiles the embedded schema.cue.
func LoadSchemas() (*SchemaSet, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile payload schemas: %w", err)
	}
	payloads := root.LookupPath(cue.ParsePath("payloads"))
	if !payloads.Exists() {
		return nil, fmt.Errorf("payload schemas missing 'payloads' struct")
	}
	return &SchemaSet{ctx: ctx, payloads: payloads}, nil
}

// Known reports whether the commit type has a schema.
func (s *SchemaSet) Known(t commit.Type) bool {
	return s.payloads.LookupPath(cue.MakePath(cue.Str(string(t)))).Exists()
}

// Types returns all schema-backed commit types, in CUE field order.
func (s *SchemaSet) Types() []commit.Type {
	var out []commit.Type
	iter, err := s.payloads.Fields()
	if err != nil {
		return nil
	}
	for iter.Next() {
		out = append(out, commit.Type(iter.Selector().Unquoted()))
	}
	return out
}

// Check validates a payload against the schema for its commit type.
// Returns a descriptive error when the payload is structurally malformed;
// the caller maps that to an InvalidCommit refusal. Unknown types must be
// screened with Known first.
func (s *SchemaSet) Check(t commit.Type, payload commit.Object) error {
	schema := s.payloads.LookupPath(cue.MakePath(cue.Str(string(t))))
	if !schema.Exists() {
		return fmt.Errorf("no schema for commit type %q", t)
	}

	if payload == nil {
		payload = commit.Object{}
	}
	data, err := payload.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	expr, err := cuejson.Extract("payload.json", data)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	val := s.ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return fmt.Errorf("build payload value: %w", err)
	}

	unified := schema.Unify(val)
	if err := unified.Err(); err != nil {
		return err
	}
	return unified.Validate(cue.Concrete(true), cue.Final())
}
