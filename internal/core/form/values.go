package form

// Values is an immutable copy of a form's values taken at submit time.
// Later edits to the form do not affect it.
type Values struct {
	values map[string]string
}

func valuesOf(s *State) Values {
	v := Values{
		values: make(map[string]string, len(s.fields)),
	}
	for _, f := range s.fields {
		v.values[f.Name()] = f.Value()
	}
	return v
}

// Get returns the submitted value of name.
func (v Values) Get(name string) string {
	return v.values[name]
}
