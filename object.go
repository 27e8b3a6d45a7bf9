package ecma

// Object is the reference type behind every non-primitive Value. It has a
// prototype, an ordered map of own properties, and a set of optional
// internal slots (spec.md §3). Independent "capabilities" — property
// access and invocation — are modeled as optional embedded state rather
// than a class hierarchy, per spec.md §9's capability-set redesign note.
type Object struct {
	class     string // diagnostic class tag: "Object", "Array", "Arguments", "Error", ...
	prototype *Object

	keys  []PropertyKey
	props map[PropertyKey]*PropertyDescriptor

	extensible bool

	// callable is non-nil when this object exposes the Callable capability.
	callable *callableSlot

	// arrayData, when non-nil, backs a fast-path Array exotic object; the
	// evaluator still updates `length` through the ordinary property path.
	arrayData []Value
	isArray   bool

	// argumentsMap is a slot for index-to-parameter aliasing of an arguments
	// object. makeArgumentsObject never fills it, so it is always nil and
	// arguments objects are unmapped.
	argumentsMap map[int]*argMapping

	// privateBrand identifies the private-name scope whose members this
	// object carries, set during class instance construction.
	privateBrand *privateScope
	privateData  map[*privateScope]map[string]*PropertyDescriptor

	// moduleNamespace, when non-nil, makes this object a read-only module
	// namespace exotic object backed by the given binding resolver.
	moduleNamespace func(name string) (Value, bool)
}

type argMapping struct {
	env  *Environment
	name string
}

func newObject(proto *Object) *Object {
	return &Object{
		class:      "Object",
		prototype:  proto,
		props:      make(map[PropertyKey]*PropertyDescriptor),
		extensible: true,
	}
}

// NewPlainObject allocates a plain object rooted at the realm's
// Object.prototype.
func (r *Realm) NewPlainObject() *Object {
	return newObject(r.ObjectPrototype)
}

// NewArray allocates an array object rooted at Array.prototype.
func (r *Realm) NewArray(elements ...Value) *Object {
	o := newObject(r.ArrayPrototype)
	o.class = "Array"
	o.isArray = true
	o.arrayData = append([]Value(nil), elements...)
	return o
}

func (o *Object) Prototype() *Object { return o.prototype }

// SetPrototype implements [[SetPrototypeOf]] (simplified: no cycle guard
// beyond a direct self-reference check, sufficient for the evaluator's own
// uses in class linkage).
func (o *Object) SetPrototype(p *Object) error {
	if p == o {
		return NewTypeErrorNoRealm("Cyclic __proto__ value")
	}
	o.prototype = p
	return nil
}

func (o *Object) IsArray() bool { return o.isArray }

func (o *Object) ArrayLength() int {
	if o.isArray {
		return len(o.arrayData)
	}
	if d, ok := o.ownProperty(StringKey("length")); ok {
		return int(d.Value.ToNumber())
	}
	return 0
}

// ---- Value interface ----

func (o *Object) ToBoolean() bool   { return true }
func (o *Object) ToNumber() float64 { return o.ToPrimitive("number").ToNumber() }
func (o *Object) ToString() string  { return o.ToPrimitive("string").ToString() }
func (o *Object) typeName() string {
	if o.callable != nil {
		return "function"
	}
	return "object"
}
func (o *Object) sameValueZero(v Value) bool {
	ov, ok := v.(*Object)
	return ok && ov == o
}

// ToPrimitive implements OrdinaryToPrimitive with the given hint
// ("default", "number", "string"): it tries valueOf then toString
// (toString first for "string") and returns the first primitive result.
// A user Symbol.toPrimitive method is not consulted. When neither method
// yields a primitive it returns "[object <class>]".
func (o *Object) ToPrimitive(hint string) Value {
	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	for _, name := range order {
		m := o.Get(StringKey(name))
		if fn, ok := m.(*Object); ok && fn.callable != nil {
			res, err := fn.callable.invoke(FunctionCall{This: o, Args: nil})
			if err == nil {
				if _, isObj := res.(*Object); !isObj {
					return res
				}
			}
		}
	}
	return StringValue("[object " + o.class + "]")
}

// ---- Property access capability ----

func (o *Object) ownProperty(key PropertyKey) (*PropertyDescriptor, bool) {
	if o.isArray {
		if sk, ok := key.(StringKey); ok {
			if sk == "length" {
				return &PropertyDescriptor{Value: NumberValue(float64(len(o.arrayData))), Writable: true}, true
			}
			if idx, ok := arrayIndex(string(sk)); ok {
				if idx < len(o.arrayData) {
					return &PropertyDescriptor{Value: o.arrayData[idx], Writable: true, Enumerable: true, Configurable: true}, true
				}
				return nil, false
			}
		}
	}
	d, ok := o.props[key]
	return d, ok
}

func arrayIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		if i == 0 && c == '0' && len(s) > 1 {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// GetOwnPropertyDescriptor returns the own descriptor for key, if any.
func (o *Object) GetOwnPropertyDescriptor(key PropertyKey) (PropertyDescriptor, bool) {
	d, ok := o.ownProperty(key)
	if !ok {
		return PropertyDescriptor{}, false
	}
	return *d, true
}

// GetOwnPropertyNames returns own string keys in insertion order followed
// by own symbol keys in insertion order (ECMA-262 [[OwnPropertyKeys]]
// integer-index-first ordering is simplified here to insertion order,
// adequate for this module's non-exotic-array-index-sorted consumers).
func (o *Object) GetOwnPropertyNames() []PropertyKey {
	var result []PropertyKey
	if o.isArray {
		for i := range o.arrayData {
			result = append(result, StringKey(itoa(i)))
		}
		result = append(result, StringKey("length"))
	}
	for _, k := range o.keys {
		if _, isSym := k.(*Symbol); !isSym {
			result = append(result, k)
		}
	}
	for _, k := range o.keys {
		if _, isSym := k.(*Symbol); isSym {
			result = append(result, k)
		}
	}
	return result
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// TryGetProperty walks the prototype chain looking for key, invoking
// accessor getters with `this = receiver`.
func (o *Object) TryGetProperty(key PropertyKey, receiver Value) (Value, bool) {
	cur := o
	for cur != nil {
		if d, ok := cur.ownProperty(key); ok {
			if d.IsAccessor {
				if d.Get == nil {
					return _undefined, true
				}
				fn, _ := d.Get.(*Object)
				if fn == nil || fn.callable == nil {
					return _undefined, true
				}
				res, err := fn.callable.invoke(FunctionCall{This: receiver, Args: nil})
				if err != nil {
					panic(err)
				}
				return res, true
			}
			return d.Value, true
		}
		cur = cur.prototype
	}
	return nil, false
}

// Get is TryGetProperty with receiver = o and a fallback of undefined.
func (o *Object) Get(key PropertyKey) Value {
	if v, ok := o.TryGetProperty(key, o); ok {
		return v
	}
	return _undefined
}

// HasProperty walks the prototype chain for presence, without reading the
// value (used by the `in` operator, supplemented feature #2).
func (o *Object) HasProperty(key PropertyKey) bool {
	for cur := o; cur != nil; cur = cur.prototype {
		if _, ok := cur.ownProperty(key); ok {
			return true
		}
	}
	return false
}

// SetProperty implements OrdinarySet: walk for an accessor setter up the
// chain; otherwise create/overwrite an own data property on o itself.
// Returns false if the property is non-writable (caller decides whether
// that is a silent no-op or a strict-mode TypeError).
func (o *Object) SetProperty(key PropertyKey, value Value, receiver Value) bool {
	for cur := o; cur != nil; cur = cur.prototype {
		if d, ok := cur.ownProperty(key); ok {
			if d.IsAccessor {
				if d.Set == nil {
					return false
				}
				fn, _ := d.Set.(*Object)
				if fn == nil || fn.callable == nil {
					return false
				}
				_, err := fn.callable.invoke(FunctionCall{This: receiver, Args: []Value{value}})
				if err != nil {
					panic(err)
				}
				return true
			}
			if cur == o {
				if !d.Writable {
					return false
				}
				if o.isArray {
					if sk, ok := key.(StringKey); ok {
						if idx, ok := arrayIndex(string(sk)); ok {
							o.growArray(idx)
							o.arrayData[idx] = value
							return true
						}
						if sk == "length" {
							n := int(value.ToNumber())
							o.resizeArray(n)
							return true
						}
					}
				}
				d.Value = value
				return true
			}
			if !d.Writable {
				return false
			}
			break
		}
	}
	if o.isArray {
		if sk, ok := key.(StringKey); ok {
			if idx, ok := arrayIndex(string(sk)); ok {
				o.growArray(idx)
				o.arrayData[idx] = value
				return true
			}
			if sk == "length" {
				o.resizeArray(int(value.ToNumber()))
				return true
			}
		}
	}
	if !o.extensible {
		return false
	}
	o.defineOwn(key, DataDescriptor(value, true, true, true))
	return true
}

func (o *Object) growArray(idx int) {
	for len(o.arrayData) <= idx {
		o.arrayData = append(o.arrayData, _undefined)
	}
}

func (o *Object) resizeArray(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(o.arrayData) {
		o.arrayData = o.arrayData[:n]
		return
	}
	o.growArray(n - 1)
}

// DefineOwnProperty installs or merges a property descriptor directly,
// bypassing setters (used by literal evaluation, Object.defineProperty,
// and class member installation).
func (o *Object) DefineOwnProperty(key PropertyKey, desc PropertyDescriptor) {
	o.defineOwn(key, desc)
}

func (o *Object) defineOwn(key PropertyKey, desc PropertyDescriptor) {
	if _, exists := o.props[key]; !exists {
		o.keys = append(o.keys, key)
	}
	d := desc
	o.props[key] = &d
}

type DeleteResult uint8

const (
	Deleted DeleteResult = iota
	NotFound
	NotConfigurable
)

// Delete implements [[Delete]] (supplemented feature #2: backs the `delete`
// operator).
func (o *Object) Delete(key PropertyKey) DeleteResult {
	if o.isArray {
		if sk, ok := key.(StringKey); ok {
			if idx, ok := arrayIndex(string(sk)); ok {
				if idx < len(o.arrayData) {
					o.arrayData[idx] = _undefined
					return Deleted
				}
				return NotFound
			}
		}
	}
	d, ok := o.props[key]
	if !ok {
		return NotFound
	}
	if !d.Configurable {
		return NotConfigurable
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return Deleted
}

// ---- Private members (spec.md §4.1 Classes) ----

type privateScope struct {
	id      uint64
	brand   *struct{}
}

var privateScopeCounter uint64

func newPrivateScope() *privateScope {
	privateScopeCounter++
	return &privateScope{id: privateScopeCounter, brand: &struct{}{}}
}

// carriesBrand reports whether o has been initialized with this scope's
// private fields (spec.md §4.1: "verifies the target carries the brand
// token associated with that scope").
func (o *Object) carriesBrand(scope *privateScope) bool {
	_, ok := o.privateData[scope]
	return ok
}

func (o *Object) getPrivate(scope *privateScope, name string) (Value, bool) {
	fields, ok := o.privateData[scope]
	if !ok {
		return nil, false
	}
	d, ok := fields[name]
	if !ok {
		return nil, false
	}
	if d.IsAccessor {
		if d.Get == nil {
			return nil, false
		}
		fn := d.Get.(*Object)
		res, err := fn.callable.invoke(FunctionCall{This: o})
		if err != nil {
			panic(err)
		}
		return res, true
	}
	return d.Value, true
}

func (o *Object) setPrivate(scope *privateScope, name string, v Value) bool {
	fields, ok := o.privateData[scope]
	if !ok {
		return false
	}
	d, ok := fields[name]
	if !ok {
		return false
	}
	if d.IsAccessor {
		if d.Set == nil {
			return false
		}
		fn := d.Set.(*Object)
		_, err := fn.callable.invoke(FunctionCall{This: o, Args: []Value{v}})
		if err != nil {
			panic(err)
		}
		return true
	}
	d.Value = v
	return true
}

// privateDescriptor returns the existing raw descriptor for a private name,
// if any, so a getter and setter declared as two separate class members can
// be merged into one accessor descriptor instead of clobbering each other.
func (o *Object) privateDescriptor(scope *privateScope, name string) (PropertyDescriptor, bool) {
	fields, ok := o.privateData[scope]
	if !ok {
		return PropertyDescriptor{}, false
	}
	d, ok := fields[name]
	if !ok {
		return PropertyDescriptor{}, false
	}
	return *d, true
}

func (o *Object) definePrivate(scope *privateScope, name string, desc PropertyDescriptor) {
	if o.privateData == nil {
		o.privateData = make(map[*privateScope]map[string]*PropertyDescriptor)
	}
	fields, ok := o.privateData[scope]
	if !ok {
		fields = make(map[string]*PropertyDescriptor)
		o.privateData[scope] = fields
	}
	d := desc
	fields[name] = &d
	o.privateBrand = scope
}
