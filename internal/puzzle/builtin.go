package puzzle

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

var (
	builtinOnce sync.Once
	builtinDefs []Definition
	builtinErr  error
)

// Builtin returns the embedded puzzle pack in file order.
func Builtin() ([]Definition, error) {
	builtinOnce.Do(func() {
		builtinDefs, builtinErr = parsePack(builtinYAML)
	})
	if builtinErr != nil {
		return nil, builtinErr
	}
	return append([]Definition(nil), builtinDefs...), nil
}

// BuiltinByID looks up one puzzle of the embedded pack.
func BuiltinByID(id string) (Definition, bool) {
	defs, err := Builtin()
	if err != nil {
		return Definition{}, false
	}
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

func parsePack(data []byte) ([]Definition, error) {
	var doc struct {
		Puzzles []Record `yaml:"puzzles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("puzzle pack: %w", err)
	}
	out := make([]Definition, 0, len(doc.Puzzles))
	for _, r := range doc.Puzzles {
		r.Source = SourceBuiltin
		d, err := FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("puzzle pack: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// BuiltinSource serves the embedded pack. An empty id picks a puzzle by day
// so every caller sees the same one.
type BuiltinSource struct {
	// Day returns the index used for the daily pick.
	Day func() int
}

// Definition resolves id against the pack.
func (s BuiltinSource) Definition(id string) (Definition, error) {
	defs, err := Builtin()
	if err != nil {
		return Definition{}, err
	}
	if len(defs) == 0 {
		return Definition{}, fmt.Errorf("%w: empty pack", ErrInvalidPuzzle)
	}
	if id == "" {
		day := 0
		if s.Day != nil {
			day = s.Day()
		}
		if day < 0 {
			day = -day
		}
		return defs[day%len(defs)], nil
	}
	if d, ok := BuiltinByID(id); ok {
		return d, nil
	}
	return Definition{}, fmt.Errorf("%w: unknown builtin %q", ErrInvalidPuzzle, id)
}
