package record

// Record is an ordered field → Value mapping. Field order is insertion
// order and survives JSON round-trips.
//
// Records are handled by pointer. Engine stages never modify a Record they
// did not allocate; use Clone before writing to a caller's record.
type Record struct {
	keys []string
	vals map[string]Value
}

// New returns an empty record.
func New() *Record {
	return &Record{vals: make(map[string]Value)}
}

// NewWithCapacity returns an empty record sized for n fields.
func NewWithCapacity(n int) *Record {
	return &Record{keys: make([]string, 0, n), vals: make(map[string]Value, n)}
}

// FromMap builds a record from a plain map, keys sorted.
func FromMap(m map[string]any) *Record {
	return FromAny(m).AsRecord()
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns a copy of the field names in order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the value for key and whether the field exists.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Null(), false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Value returns the value for key, or null.
func (r *Record) Value(key string) Value {
	v, _ := r.Get(key)
	return v
}

// Has reports whether key exists (even if null).
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set assigns key, appending it if new. Returns r for chaining.
func (r *Record) Set(key string, v Value) *Record {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
	return r
}

// Delete removes key if present.
func (r *Record) Delete(key string) {
	if r == nil {
		return
	}
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each field in order until fn returns false.
func (r *Record) Range(fn func(key string, v Value) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.vals[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := NewWithCapacity(len(r.keys))
	for _, k := range r.keys {
		out.Set(k, r.vals[k].Clone())
	}
	return out
}

// Equal reports structural equality, including field order.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	if r == nil || o == nil {
		return r == o || r.Len() == 0
	}
	for i, k := range r.keys {
		if o.keys[i] != k {
			return false
		}
		if !Equal(r.vals[k], o.vals[k]) {
			return false
		}
	}
	return true
}

// ToMap converts the record into a plain map.
func (r *Record) ToMap() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = r.vals[k].ToAny()
	}
	return out
}
