package input

import (
	"fmt"
	"strings"
)

// Device identifies the source family of a raw input.
type Device uint8

const (
	DeviceKey Device = iota
	DeviceMouseButton
	DeviceMouseAxis
)

// String returns the string representation of Device.
func (d Device) String() string {
	switch d {
	case DeviceKey:
		return "key"
	case DeviceMouseButton:
		return "mouse_button"
	case DeviceMouseAxis:
		return "mouse_axis"
	default:
		return "unknown"
	}
}

// Key is a keyboard key code.
type Key uint16

const (
	KeyUnknown Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeySpace
	KeyEnter
	KeyEscape
	KeyTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyLeftShift
	KeyRightShift
	KeyLeftControl
	KeyRightControl
	KeyLeftAlt
	KeyRightAlt
	KeyLeftSuper
	KeyRightSuper
)

var keyNames = map[Key]string{
	KeySpace: "Space", KeyEnter: "Enter", KeyEscape: "Escape", KeyTab: "Tab",
	KeyBackspace: "Backspace", KeyUp: "Up", KeyDown: "Down", KeyLeft: "Left",
	KeyRight: "Right", KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4",
	KeyF5: "F5", KeyLeftShift: "LeftShift", KeyRightShift: "RightShift",
	KeyLeftControl: "LeftControl", KeyRightControl: "RightControl",
	KeyLeftAlt: "LeftAlt", KeyRightAlt: "RightAlt", KeyLeftSuper: "LeftSuper",
	KeyRightSuper: "RightSuper",
}

var keysByName map[string]Key

func init() {
	for k := KeyA; k <= KeyZ; k++ {
		keyNames[k] = string(rune('A' + int(k-KeyA)))
	}
	for k := Key0; k <= Key9; k++ {
		keyNames[k] = string(rune('0' + int(k-Key0)))
	}
	keysByName = make(map[string]Key, len(keyNames))
	for k, name := range keyNames {
		keysByName[strings.ToLower(name)] = k
	}
}

// String returns the key name.
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Key(%d)", uint16(k))
}

// ParseKey resolves a key by its case-insensitive name.
func ParseKey(name string) (Key, error) {
	k, ok := keysByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return KeyUnknown, fmt.Errorf("%w: key %q", ErrUnknownInput, name)
	}
	return k, nil
}

// MouseButton is a mouse button code.
type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

// MouseAxis is a continuous mouse axis.
type MouseAxis uint8

const (
	AxisX MouseAxis = iota
	AxisY
	AxisWheel
)

// Modifiers is a bit set of modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

// Contains reports whether every modifier in sub is present in m.
func (m Modifiers) Contains(sub Modifiers) bool {
	return m&sub == sub
}

// modifierFor returns the modifier bit a key toggles, if any.
func modifierFor(k Key) Modifiers {
	switch k {
	case KeyLeftShift, KeyRightShift:
		return ModShift
	case KeyLeftControl, KeyRightControl:
		return ModControl
	case KeyLeftAlt, KeyRightAlt:
		return ModAlt
	case KeyLeftSuper, KeyRightSuper:
		return ModSuper
	default:
		return 0
	}
}

// ParseModifier resolves a modifier by name.
func ParseModifier(name string) (Modifiers, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "shift":
		return ModShift, nil
	case "ctrl", "control":
		return ModControl, nil
	case "alt":
		return ModAlt, nil
	case "super", "cmd", "meta":
		return ModSuper, nil
	default:
		return 0, fmt.Errorf("%w: modifier %q", ErrUnknownInput, name)
	}
}

// RawInput identifies one physical input.
type RawInput struct {
	Device Device
	Code   uint16
}

// KeyInput returns the raw input for a key.
func KeyInput(k Key) RawInput {
	return RawInput{Device: DeviceKey, Code: uint16(k)}
}

// ButtonInput returns the raw input for a mouse button.
func ButtonInput(b MouseButton) RawInput {
	return RawInput{Device: DeviceMouseButton, Code: uint16(b)}
}

// AxisInput returns the raw input for a mouse axis.
func AxisInput(a MouseAxis) RawInput {
	return RawInput{Device: DeviceMouseAxis, Code: uint16(a)}
}

// String returns a readable form such as "key:W".
func (r RawInput) String() string {
	if r.Device == DeviceKey {
		return "key:" + Key(r.Code).String()
	}
	return fmt.Sprintf("%s:%d", r.Device, r.Code)
}

// Vec2 is a two component parameter.
type Vec2 struct {
	X, Y float64
}

// Vec3 is a three component parameter. It is the accumulator type for
// every arity.
type Vec3 struct {
	X, Y, Z float64
}

// One is the neutral weight.
var One = Vec3{1, 1, 1}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Mul returns the component-wise product.
func (v Vec3) Mul(o Vec3) Vec3 {
	return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z}
}

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// XY drops the Z component.
func (v Vec3) XY() Vec2 {
	return Vec2{v.X, v.Y}
}

// Phase selects which handler family a binding belongs to.
type Phase uint8

const (
	PhasePressed Phase = iota
	PhaseHeld
	PhaseReleased
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhasePressed:
		return "pressed"
	case PhaseHeld:
		return "held"
	case PhaseReleased:
		return "released"
	default:
		return "unknown"
	}
}
