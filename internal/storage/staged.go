package storage

// staged is a Tx over a committed snapshot. Writes land in an overlay that
// the driver applies on commit.
type staged struct {
	base    map[string][]byte
	writes  map[string][]byte
	deletes map[string]bool
}

func newStaged(base map[string][]byte) *staged {
	return &staged{base: base, writes: map[string][]byte{}, deletes: map[string]bool{}}
}

func (t *staged) Get(field string) ([]byte, bool, error) {
	if t.deletes[field] {
		return nil, false, nil
	}
	if v, ok := t.writes[field]; ok {
		return clone(v), true, nil
	}
	v, ok := t.base[field]
	return clone(v), ok, nil
}

func (t *staged) Put(field string, value []byte) error {
	delete(t.deletes, field)
	t.writes[field] = clone(value)
	return nil
}

func (t *staged) Delete(field string) error {
	delete(t.writes, field)
	t.deletes[field] = true
	return nil
}

func (t *staged) dirty() bool { return len(t.writes) > 0 || len(t.deletes) > 0 }

func (t *staged) applyTo(m map[string][]byte) {
	for f := range t.deletes {
		delete(m, f)
	}
	for f, v := range t.writes {
		m[f] = v
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
