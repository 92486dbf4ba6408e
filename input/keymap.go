package input

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// keymapFile is the on-disk form of a Context.
//
//	name: gameplay
//	actions:
//	  move:
//	    - key: W
//	      weight: [0, 1]
//	  save:
//	    - key: S
//	      modifiers: [ctrl]
type keymapFile struct {
	Name    string                   `yaml:"name" toml:"name"`
	Actions map[string][]keymapEntry `yaml:"actions" toml:"actions"`
	Order   []string                 `yaml:"order,omitempty" toml:"order,omitempty"`
}

type keymapEntry struct {
	Key       string    `yaml:"key,omitempty" toml:"key,omitempty"`
	Button    string    `yaml:"button,omitempty" toml:"button,omitempty"`
	Axis      string    `yaml:"axis,omitempty" toml:"axis,omitempty"`
	Modifiers []string  `yaml:"modifiers,omitempty" toml:"modifiers,omitempty"`
	Weight    []float64 `yaml:"weight,omitempty" toml:"weight,omitempty"`
}

// LoadKeymap reads a context from a .yaml, .yml or .toml file.
func LoadKeymap(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keymap %s: %w", path, err)
	}
	return ParseKeymap(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// ParseKeymap decodes a context. format is "yaml", "yml" or "toml".
func ParseKeymap(data []byte, format string) (*Context, error) {
	var file keymapFile
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML keymap: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML keymap: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrKeymapFormat, format)
	}

	name := file.Name
	if name == "" {
		name = "default"
	}
	ctx := NewContext(name)

	for _, action := range actionOrder(file) {
		for i, entry := range file.Actions[action] {
			b, err := entry.binding()
			if err != nil {
				return nil, fmt.Errorf("action %s entry %d: %w", action, i, err)
			}
			if err := ctx.Bind(action, b); err != nil {
				return nil, err
			}
		}
	}
	return ctx, nil
}

// actionOrder honours the optional order list, then appends the remaining
// actions sorted by name so loading is deterministic.
func actionOrder(file keymapFile) []string {
	seen := make(map[string]bool, len(file.Actions))
	var out []string
	for _, name := range file.Order {
		if _, ok := file.Actions[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var rest []string
	for name := range file.Actions {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (e keymapEntry) binding() (Binding, error) {
	var raw RawInput
	set := 0
	if e.Key != "" {
		k, err := ParseKey(e.Key)
		if err != nil {
			return Binding{}, err
		}
		raw = KeyInput(k)
		set++
	}
	if e.Button != "" {
		b, err := parseButton(e.Button)
		if err != nil {
			return Binding{}, err
		}
		raw = ButtonInput(b)
		set++
	}
	if e.Axis != "" {
		a, err := parseAxis(e.Axis)
		if err != nil {
			return Binding{}, err
		}
		raw = AxisInput(a)
		set++
	}
	if set != 1 {
		return Binding{}, fmt.Errorf("%w: exactly one of key, button or axis is required", ErrKeymapBadEntry)
	}

	var mods Modifiers
	for _, name := range e.Modifiers {
		m, err := ParseModifier(name)
		if err != nil {
			return Binding{}, err
		}
		mods |= m
	}

	b := Bind(raw, mods)
	switch len(e.Weight) {
	case 0:
	case 1:
		b.Weight = Vec3{e.Weight[0], 1, 1}
	case 2:
		b.Weight = Vec3{e.Weight[0], e.Weight[1], 0}
	case 3:
		b.Weight = Vec3{e.Weight[0], e.Weight[1], e.Weight[2]}
	default:
		return Binding{}, fmt.Errorf("%w: weight has %d components", ErrKeymapBadEntry, len(e.Weight))
	}
	return b, nil
}

func parseButton(name string) (MouseButton, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left":
		return MouseLeft, nil
	case "right":
		return MouseRight, nil
	case "middle":
		return MouseMiddle, nil
	default:
		return 0, fmt.Errorf("%w: mouse button %q", ErrUnknownInput, name)
	}
}

func parseAxis(name string) (MouseAxis, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "wheel":
		return AxisWheel, nil
	default:
		return 0, fmt.Errorf("%w: mouse axis %q", ErrUnknownInput, name)
	}
}
