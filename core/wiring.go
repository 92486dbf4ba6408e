package core

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/signal"
)

const tagKey = "atom"

var (
	atomType       = reflect.TypeOf((*Atom)(nil)).Elem()
	backstageType  = reflect.TypeOf((*BackstageAtom)(nil)).Elem()
	signalType     = reflect.TypeOf((*signal.Signal)(nil)).Elem()
	declarerType   = reflect.TypeOf((*Declarer)(nil)).Elem()
	hookFuncType   = reflect.TypeOf(func() {})
	deltaFuncType  = reflect.TypeOf(func(float64) {})
	implicitInit   = "OnInit"
	implicitUpdate = "OnUpdate"
	implicitDest   = "OnDestroy"
)

type componentField struct {
	name  string
	index []int
	typ   reflect.Type
}

type signalField struct {
	name  string
	index []int
	typ   reflect.Type
	ptr   bool
}

type methodRef struct {
	name  string
	delta bool
}

type timerRef struct {
	method methodRef
	spec   TimerSpec
}

// plan is the wiring of one concrete atom type.
type plan struct {
	components []componentField
	signals    []signalField
	init       []methodRef
	update     []methodRef
	destroy    []methodRef
	timers     []timerRef
	inputs     []InputDecl
}

// PlanCache memoizes wiring plans per concrete type. One cache lives in
// each backstage; standalone atoms share a process-wide cache.
type PlanCache struct {
	mu     sync.Mutex
	plans  map[reflect.Type]*plan
	errs   map[reflect.Type]error
	hits   uint64
	misses uint64
}

// NewPlanCache creates an empty cache.
func NewPlanCache() *PlanCache {
	return &PlanCache{
		plans: make(map[reflect.Type]*plan),
		errs:  make(map[reflect.Type]error),
	}
}

var standalonePlans = NewPlanCache()

// Len returns the number of cached types, including failed ones.
func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans) + len(c.errs)
}

// Stats returns cache hits and misses.
func (c *PlanCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *PlanCache) lookup(t reflect.Type) (*plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.plans[t]; ok {
		c.hits++
		return p, nil
	}
	if err, ok := c.errs[t]; ok {
		c.hits++
		return nil, err
	}
	c.misses++
	p, err := buildPlan(t)
	if err != nil {
		c.errs[t] = err
		return nil, err
	}
	c.plans[t] = p
	return p, nil
}

func buildPlan(t reflect.Type) (*plan, error) {
	p := &plan{}
	name := typeName(t)
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return p, nil
	}

	if err := p.scanFields(name, t.Elem()); err != nil {
		return nil, err
	}

	zero := reflect.New(t.Elem())
	var decl Declaration
	if t.Implements(declarerType) {
		decl = zero.Interface().(Declarer).Declare()
	}

	var err error
	if p.init, err = hookRefs(name, zero, withImplicit(zero, decl.Init, implicitInit), false); err != nil {
		return nil, err
	}
	if p.update, err = hookRefs(name, zero, withImplicit(zero, decl.Update, implicitUpdate), true); err != nil {
		return nil, err
	}
	if p.destroy, err = hookRefs(name, zero, withImplicit(zero, decl.Destroy, implicitDest), false); err != nil {
		return nil, err
	}

	for _, td := range decl.Timers {
		if _, _, err := td.spec().resolve(); err != nil {
			return nil, &WiringError{Type: name, Member: td.Method, Err: err}
		}
		refs, err := hookRefs(name, zero, []string{td.Method}, true)
		if err != nil {
			return nil, err
		}
		p.timers = append(p.timers, timerRef{method: refs[0], spec: td.spec()})
	}

	for _, id := range decl.Inputs {
		m := zero.MethodByName(id.Method)
		if !m.IsValid() {
			return nil, &WiringError{Type: name, Member: id.Method, Err: ErrUnknownMethod}
		}
		if _, err := input.NewCallback(id.Arity, m.Interface()); err != nil {
			return nil, &WiringError{Type: name, Member: id.Method, Err: err}
		}
		if id.Action == "" {
			return nil, &WiringError{Type: name, Member: id.Method, Err: input.ErrEmptyAction}
		}
		p.inputs = append(p.inputs, id)
	}
	return p, nil
}

func (p *plan) scanFields(name string, st reflect.Type) error {
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag := f.Tag.Get(tagKey)
		if f.Anonymous || tag == "-" || !f.IsExported() {
			continue
		}

		switch {
		case tag == "component":
			ft := f.Type
			if ft.Kind() != reflect.Ptr || ft.Elem().Kind() != reflect.Struct ||
				!ft.Implements(atomType) || ft.Implements(backstageType) {
				return &WiringError{Type: name, Member: f.Name,
					Err: fmt.Errorf("%w: %s is not a pointer to a concrete atom", ErrComponentType, ft)}
			}
			p.components = append(p.components, componentField{name: f.Name, index: f.Index, typ: ft})

		case f.Type.Kind() == reflect.Interface && f.Type.Implements(signalType):
			return &WiringError{Type: name, Member: f.Name,
				Err: fmt.Errorf("%w: %s is abstract", ErrSignalType, f.Type)}

		case f.Type.Kind() == reflect.Ptr && f.Type.Implements(signalType):
			if f.Type.Elem().Kind() != reflect.Struct {
				return &WiringError{Type: name, Member: f.Name,
					Err: fmt.Errorf("%w: %s cannot be constructed", ErrSignalType, f.Type)}
			}
			p.signals = append(p.signals, signalField{name: f.Name, index: f.Index, typ: f.Type, ptr: true})

		case reflect.PtrTo(f.Type).Implements(signalType):
			p.signals = append(p.signals, signalField{name: f.Name, index: f.Index, typ: f.Type})

		case tag == "signal":
			return &WiringError{Type: name, Member: f.Name,
				Err: fmt.Errorf("%w: %s is not a signal", ErrSignalType, f.Type)}

		case tag != "":
			return &WiringError{Type: name, Member: f.Name,
				Err: fmt.Errorf("unknown %s tag %q", tagKey, tag)}
		}
	}
	return nil
}

// withImplicit appends the conventional hook name when the type has it
// and the declaration did not list it.
func withImplicit(zero reflect.Value, names []string, implicit string) []string {
	for _, n := range names {
		if n == implicit {
			return names
		}
	}
	if zero.MethodByName(implicit).IsValid() {
		out := make([]string, 0, len(names)+1)
		out = append(out, names...)
		return append(out, implicit)
	}
	return names
}

func hookRefs(name string, zero reflect.Value, methods []string, allowDelta bool) ([]methodRef, error) {
	refs := make([]methodRef, 0, len(methods))
	seen := make(map[string]bool, len(methods))
	for _, method := range methods {
		if seen[method] {
			continue
		}
		seen[method] = true

		m := zero.MethodByName(method)
		if !m.IsValid() {
			return nil, &WiringError{Type: name, Member: method, Err: ErrUnknownMethod}
		}
		switch m.Type() {
		case hookFuncType:
			refs = append(refs, methodRef{name: method})
		case deltaFuncType:
			if !allowDelta {
				return nil, &WiringError{Type: name, Member: method,
					Err: fmt.Errorf("%w: want func(), got %s", ErrHookSignature, m.Type())}
			}
			refs = append(refs, methodRef{name: method, delta: true})
		default:
			return nil, &WiringError{Type: name, Member: method,
				Err: fmt.Errorf("%w: got %s", ErrHookSignature, m.Type())}
		}
	}
	return refs, nil
}

func (r methodRef) bindDelta(v reflect.Value) func(float64) {
	m := v.MethodByName(r.name).Interface()
	if r.delta {
		return m.(func(float64))
	}
	fn := m.(func())
	return func(float64) { fn() }
}

func (r methodRef) bind(v reflect.Value) func() {
	return v.MethodByName(r.name).Interface().(func())
}

// resolve binds the cached plan of a's type to a: components are built and
// attached (not initialized), signals constructed, hook chains and timers
// installed, and input handlers registered with the backstage router.
func resolve(a Atom) error {
	n := a.AsNode()
	cache := standalonePlans
	if n.backstage != nil {
		if c, err := Resolve[*PlanCache](n.backstage); err == nil {
			cache = c
		}
	}

	t := reflect.TypeOf(a)
	p, err := cache.lookup(t)
	if err != nil {
		return err
	}

	n.hooks = hooks{}
	v := reflect.ValueOf(a)
	name := typeName(t)

	for _, cf := range p.components {
		fv := v.Elem().FieldByIndex(cf.index)
		if fv.IsNil() {
			fv.Set(reflect.New(cf.typ.Elem()))
		}
		child := fv.Interface().(Atom)
		c := bind(child)
		switch {
		case c.parent == nil:
			attach(n, a, child)
		case c.parent.AsNode() != n:
			return &WiringError{Type: name, Member: cf.name, Err: ErrAlreadyAdopted}
		}
	}

	for _, sf := range p.signals {
		fv := v.Elem().FieldByIndex(sf.index)
		if sf.ptr && fv.IsNil() {
			fv.Set(reflect.New(sf.typ.Elem()))
		}
	}

	for _, r := range p.init {
		n.hooks.init = append(n.hooks.init, r.bind(v))
	}
	for _, r := range p.update {
		n.hooks.update = append(n.hooks.update, r.bindDelta(v))
	}
	for _, r := range p.destroy {
		n.hooks.destroy = append(n.hooks.destroy, r.bind(v))
	}

	for _, tr := range p.timers {
		if _, err := AddTimer(a, tr.spec, tr.method.bindDelta(v)); err != nil {
			return &WiringError{Type: name, Member: tr.method.name, Err: err}
		}
	}

	if len(p.inputs) == 0 {
		return nil
	}
	if n.backstage == nil {
		return &WiringError{Type: name, Member: p.inputs[0].Method, Err: ErrNoBackstage}
	}
	router, err := Resolve[*input.Router](n.backstage)
	if err != nil {
		return err
	}
	groups := make(map[string]uint64)
	for _, id := range p.inputs {
		cb, err := input.NewCallback(id.Arity, v.MethodByName(id.Method).Interface())
		if err != nil {
			return &WiringError{Type: name, Member: id.Method, Err: err}
		}
		var group uint64
		if id.Phase == input.PhaseHeld {
			key := id.group()
			if group = groups[key]; group == 0 {
				group = router.NewGroup()
				groups[key] = group
			}
		}
		if _, err := router.Bind(n, id.Phase, id.Action, group, id.template(), cb); err != nil {
			return &WiringError{Type: name, Member: id.Method, Err: err}
		}
	}
	return nil
}
