package form

import (
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/core/validator"
)

// FieldSpec declares one field of a form.
type FieldSpec struct {
	Name       string
	Initial    string
	Validators []validator.Validator
}

// State is an immutable snapshot of a form.
type State struct {
	fields []Field
	index  map[string]int
	valid  bool
}

// Valid is FormIsValid: the AND of every field's validity.
func (s *State) Valid() bool { return s.valid }

// Fields returns the fields in display order.
func (s *State) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field returns the named field.
func (s *State) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// with returns a new State where field i is replaced and validity recomputed.
func (s *State) with(i int, f Field) *State {
	fields := append([]Field(nil), s.fields...)
	fields[i] = f
	return &State{
		fields: fields,
		index:  s.index,
		valid:  allValid(fields),
	}
}

func allValid(fields []Field) bool {
	for _, f := range fields {
		if !f.Valid() {
			return false
		}
	}
	return true
}

// Observer receives every new State published by a Form.
type Observer func(*State)

// Form is the form state engine.
type Form struct {
	mu        sync.RWMutex
	state     *State
	observers map[int]Observer
	nextID    int
}

// New builds a form from specs. Names must be unique and non-empty.
func New(specs ...FieldSpec) (*Form, error) {
	if len(specs) == 0 {
		return nil, domain.ErrFormDefinition.WithDetails("at least one field is required")
	}

	fields := make([]Field, 0, len(specs))
	index := make(map[string]int, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, domain.ErrFormDefinition.WithDetails("field name is required")
		}
		if _, dup := index[name]; dup {
			return nil, domain.ErrFormDefinition.WithDetails("duplicate field " + name)
		}
		index[name] = len(fields)
		fields = append(fields, NewField(name, spec.Initial, spec.Validators...))
	}

	return &Form{
		state: &State{
			fields: fields,
			index:  index,
			valid:  allValid(fields),
		},
		observers: make(map[int]Observer),
	}, nil
}

// MustNew is like New but panics on a bad definition. For static forms only.
func MustNew(specs ...FieldSpec) *Form {
	f, err := New(specs...)
	if err != nil {
		panic(err)
	}
	return f
}

// Snapshot returns the current state.
func (f *Form) Snapshot() *State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// IsValid returns FormIsValid for the current state.
func (f *Form) IsValid() bool {
	return f.Snapshot().Valid()
}

// Field returns the named field from the current state.
func (f *Form) Field(name string) (Field, bool) {
	return f.Snapshot().Field(name)
}

// Names returns field names in display order.
func (f *Form) Names() []string {
	s := f.Snapshot()
	names := make([]string, len(s.fields))
	for i, fld := range s.fields {
		names[i] = fld.Name()
	}
	return names
}

// UpdateField sets the value of the named field and recomputes FormIsValid.
// Returns ErrUnknownField if the form has no such field.
func (f *Form) UpdateField(name, value string) error {
	return f.mutate(name, func(fld Field) Field { return fld.SetValue(value) })
}

// BlurField marks the named field as touched. FormIsValid is unaffected.
// Returns ErrUnknownField if the form has no such field.
func (f *Form) BlurField(name string) error {
	return f.mutate(name, func(fld Field) Field { return fld.MarkTouched() })
}

func (f *Form) mutate(name string, apply func(Field) Field) error {
	f.mu.Lock()
	i, ok := f.state.index[name]
	if !ok {
		f.mu.Unlock()
		return domain.ErrUnknownField.WithDetails(name)
	}
	next := f.state.with(i, apply(f.state.fields[i]))
	f.state = next
	observers := f.snapshotObservers()
	f.mu.Unlock()

	for _, obs := range observers {
		obs(next)
	}
	return nil
}

// Submit returns an immutable copy of the field values if the form is valid.
// Returns ErrFormInvalid otherwise.
func (f *Form) Submit() (Values, error) {
	s := f.Snapshot()
	if !s.Valid() {
		var invalid []string
		for _, fld := range s.fields {
			if !fld.Valid() {
				invalid = append(invalid, fld.Name())
			}
		}
		return Values{}, domain.ErrFormInvalid.WithDetails("invalid fields: " + strings.Join(invalid, ", "))
	}
	return valuesOf(s), nil
}

// Subscribe registers an observer called after every mutation. The returned
// function removes it.
func (f *Form) Subscribe(obs Observer) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.observers[id] = obs

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

// snapshotObservers must be called with f.mu held.
func (f *Form) snapshotObservers() []Observer {
	if len(f.observers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(f.observers))
	for id := range f.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids) // registration order
	out := make([]Observer, len(ids))
	for i, id := range ids {
		out[i] = f.observers[id]
	}
	return out
}
