package input

// Binding ties one raw input and a required modifier set to an action.
// An empty modifier set matches any active modifiers.
type Binding struct {
	Input     RawInput
	Modifiers Modifiers
	Weight    Vec3
}

// Bind returns a binding with the neutral weight.
func Bind(raw RawInput, mods Modifiers) Binding {
	return Binding{Input: raw, Modifiers: mods, Weight: One}
}

// WithWeight returns a copy of b with the given axis weight.
func (b Binding) WithWeight(w Vec3) Binding {
	b.Weight = w
	return b
}

// Match is one binding that matched a raw input.
type Match struct {
	Action  string
	Binding Binding
}

// Context is a named mapping from raw inputs to actions.
type Context struct {
	name     string
	actions  []string
	bindings map[string][]Binding
	byInput  map[RawInput][]Match
}

// NewContext creates an empty context.
func NewContext(name string) *Context {
	return &Context{
		name:     name,
		bindings: make(map[string][]Binding),
		byInput:  make(map[RawInput][]Match),
	}
}

// Name returns the context name.
func (c *Context) Name() string {
	return c.name
}

// Bind adds bindings for an action. An action may bind several raw inputs.
func (c *Context) Bind(action string, bindings ...Binding) error {
	if action == "" {
		return ErrEmptyAction
	}
	if _, exists := c.bindings[action]; !exists {
		c.actions = append(c.actions, action)
	}
	for _, b := range bindings {
		c.bindings[action] = append(c.bindings[action], b)
		c.byInput[b.Input] = append(c.byInput[b.Input], Match{Action: action, Binding: b})
	}
	return nil
}

// Actions returns action names in the order they were first bound.
func (c *Context) Actions() []string {
	out := make([]string, len(c.actions))
	copy(out, c.actions)
	return out
}

// Bindings returns the bindings of an action.
func (c *Context) Bindings(action string) []Binding {
	return c.bindings[action]
}

// Match returns every action bound to raw whose modifier set is satisfied
// by active. Each action appears once.
func (c *Context) Match(raw RawInput, active Modifiers) []string {
	matches := c.MatchBindings(raw, active)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Action)
	}
	return out
}

// MatchBindings is Match with the binding that matched each action.
func (c *Context) MatchBindings(raw RawInput, active Modifiers) []Match {
	var out []Match
	seen := make(map[string]bool)
	for _, m := range c.byInput[raw] {
		if seen[m.Action] || !active.Contains(m.Binding.Modifiers) {
			continue
		}
		seen[m.Action] = true
		out = append(out, m)
	}
	return out
}
