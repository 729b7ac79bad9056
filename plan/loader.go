package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Source is one plan document read from a file, after constants and parameters were applied.
// A parameterized file produces one Source per parameter set.
type Source struct {
	FilePath string
	Params   Variables
	Data     []byte
}

// ParamsString describes the parameter set, for messages. It is empty if there is none.
func (s Source) ParamsString() string {
	if len(s.Params) == 0 {
		return ""
	}
	names := maps.Keys(s.Params)
	slices.Sort(names)
	ret := ""
	for _, name := range names {
		if ret != "" {
			ret += ","
		}
		ret += name + "=" + s.Params[name].String()
	}
	return "(" + ret + ")"
}

func (s Source) describe() string {
	if p := s.ParamsString(); p != "" {
		return fmt.Sprintf("%q %s", filepath.Base(s.FilePath), p)
	}
	return fmt.Sprintf("%q", filepath.Base(s.FilePath))
}

// LoadFile reads a plan file and applies its substitutions.
func LoadFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	sources, err := expand(data)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", path, err)
	}
	for i := range sources {
		sources[i].FilePath = path
	}
	return sources, nil
}

// LoadFiles reads every plan file and parses the resulting documents, in order.
func LoadFiles(paths ...string) ([]*Plan, error) {
	var ret []*Plan
	for _, path := range paths {
		sources, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, source := range sources {
			p, err := Parse(source)
			if err != nil {
				return nil, err
			}
			ret = append(ret, p)
		}
	}
	return ret, nil
}
