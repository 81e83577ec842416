package locator

import (
	"fmt"
	"sort"
	"strings"
)

type Options struct {
	Markers     []string
	SourceAttrs []string
	AllowExt    []string
}

var registry = map[string]func(Options) Strategy{
	"class-marker": func(o Options) Strategy { return NewClassMarker(o.Markers, o.SourceAttrs) },
	"generic":      func(o Options) Strategy { return NewGeneric(o.AllowExt) },
	"script":       func(o Options) Strategy { return NewScript(o.AllowExt) },
}

// Select returns the strategy registered under name; empty means class-marker.
func Select(name string, opts Options) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "class-marker"
	}

	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown locator strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	return build(opts), nil
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
