package domain

// Attribute is a single named metadata value. Values are opaque to the store:
// any JSON-serializable value is accepted and round-trips unchanged.
type Attribute struct {
	Name  string
	Value any
}

// AttributeSet holds named metadata values with unique names and stable
// insertion order. An optional definitions allow-list restricts which names
// may appear; a nil definitions set accepts any name.
type AttributeSet struct {
	defs  []string
	allow map[string]struct{}
	attrs []Attribute
	index map[string]int
}

// NewAttributeSet builds a set from optional definitions and initial pairs.
// Names outside the definitions fail with ErrInvalidAttribute; a repeated
// initial name fails with ErrDuplicateAttribute.
func NewAttributeSet(definitions []string, pairs []Attribute) (*AttributeSet, error) {
	s := &AttributeSet{index: make(map[string]int)}
	if definitions != nil {
		s.defs = append([]string(nil), definitions...)
		s.allow = make(map[string]struct{}, len(definitions))
		for _, name := range definitions {
			s.allow[name] = struct{}{}
		}
	}
	for _, p := range pairs {
		if err := s.validateName(p.Name); err != nil {
			return nil, err
		}
		if _, exists := s.index[p.Name]; exists {
			return nil, NewError(ErrDuplicateAttribute, "attribute %q given more than once", p.Name)
		}
		s.index[p.Name] = len(s.attrs)
		s.attrs = append(s.attrs, p)
	}
	return s, nil
}

func (s *AttributeSet) validateName(name string) error {
	if name == "" {
		return NewError(ErrInvalidAttribute, "attribute name must not be empty")
	}
	if s.allow != nil {
		if _, ok := s.allow[name]; !ok {
			return NewError(ErrInvalidAttribute, "attribute %q is not defined", name)
		}
	}
	return nil
}

// Get returns the value stored under name.
func (s *AttributeSet) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.attrs[i].Value, true
}

// Has reports whether name is present.
func (s *AttributeSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

// Set inserts or replaces the value under name, preserving the position of an
// existing entry. Names outside the definitions fail with ErrInvalidAttribute.
func (s *AttributeSet) Set(name string, value any) error {
	if err := s.validateName(name); err != nil {
		return err
	}
	if i, ok := s.index[name]; ok {
		s.attrs[i].Value = value
		return nil
	}
	s.index[name] = len(s.attrs)
	s.attrs = append(s.attrs, Attribute{Name: name, Value: value})
	return nil
}

// Delete removes name from the set, reporting whether it was present.
func (s *AttributeSet) Delete(name string) bool {
	i, ok := s.index[name]
	if !ok {
		return false
	}
	s.attrs = append(s.attrs[:i], s.attrs[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.attrs); j++ {
		s.index[s.attrs[j].Name] = j
	}
	return true
}

// Len returns the number of attributes.
func (s *AttributeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.attrs)
}

// Names returns attribute names in insertion order.
func (s *AttributeSet) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		out[i] = a.Name
	}
	return out
}

// Attributes returns a copy of the pairs in insertion order.
func (s *AttributeSet) Attributes() []Attribute {
	if s == nil {
		return nil
	}
	return append([]Attribute(nil), s.attrs...)
}

// Clone returns an independent copy. Values are shared; mutating a stored
// composite value through a clone is the caller's responsibility to avoid.
func (s *AttributeSet) Clone() *AttributeSet {
	if s == nil {
		return nil
	}
	cp, _ := NewAttributeSet(s.defs, s.attrs)
	return cp
}

// ToRecord encodes the set as plain record data.
func (s *AttributeSet) ToRecord() map[string]any {
	rec := map[string]any{}
	values := make([]any, 0, s.Len())
	if s != nil {
		for _, a := range s.attrs {
			values = append(values, map[string]any{"name": a.Name, "value": a.Value})
		}
		if s.defs != nil {
			defs := make([]any, len(s.defs))
			for i, d := range s.defs {
				defs[i] = d
			}
			rec["definitions"] = defs
		}
	}
	rec["values"] = values
	return rec
}

// AttributeSetFromRecord decodes record data produced by ToRecord. Duplicate
// names in the payload fail with ErrDuplicateAttribute.
func AttributeSetFromRecord(raw any) (*AttributeSet, error) {
	if raw == nil {
		return NewAttributeSet(nil, nil)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, NewError(ErrInvalidAttribute, "attribute payload has unexpected shape %T", raw)
	}
	var defs []string
	if rawDefs, ok := m["definitions"]; ok {
		list, ok := rawDefs.([]any)
		if !ok {
			return nil, NewError(ErrInvalidAttribute, "attribute definitions have unexpected shape %T", rawDefs)
		}
		defs = make([]string, 0, len(list))
		for _, d := range list {
			name, ok := d.(string)
			if !ok {
				return nil, NewError(ErrInvalidAttribute, "attribute definition %v is not a string", d)
			}
			defs = append(defs, name)
		}
	}
	var pairs []Attribute
	if rawValues, ok := m["values"]; ok && rawValues != nil {
		list, ok := rawValues.([]any)
		if !ok {
			return nil, NewError(ErrInvalidAttribute, "attribute values have unexpected shape %T", rawValues)
		}
		for _, v := range list {
			entry, ok := v.(map[string]any)
			if !ok {
				return nil, NewError(ErrInvalidAttribute, "attribute entry has unexpected shape %T", v)
			}
			name, ok := entry["name"].(string)
			if !ok {
				return nil, NewError(ErrInvalidAttribute, "attribute entry is missing a name")
			}
			pairs = append(pairs, Attribute{Name: name, Value: entry["value"]})
		}
	}
	return NewAttributeSet(defs, pairs)
}
