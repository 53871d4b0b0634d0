package vm

// ClassDescriptor is the emit-time, immutable description of a `class`
// declaration: field names with their folded default values, and method
// descriptors.
type ClassDescriptor struct {
	Name       string
	ParentName string // "" if no explicit superclass
	Fields     []FieldDescriptor
	Methods    []*FunctionDescriptor
}

type FieldDescriptor struct {
	Name       string
	HasDefault bool
	Default    Value // evaluated once at class-declaration time; valid iff HasDefault
}

// ClassType is a ClassDescriptor materialized at runtime: its parent
// pointer resolved and its own methods held in a name-keyed map;
// ResolveMethod looks a name up there and then up the parent chain.
type ClassType struct {
	baseObject
	Descriptor *ClassDescriptor
	Parent     *ClassType // nil for a root class
	Methods    map[string]*Function
	FieldOrder []string // declared order, own fields only
}

func NewClassType(desc *ClassDescriptor, parent *ClassType, methods map[string]*Function) *ClassType {
	ct := &ClassType{baseObject: baseObject{rc: 1}, Descriptor: desc, Parent: parent, Methods: methods}
	if parent != nil {
		parent.Retain()
	}
	for _, f := range desc.Fields {
		ct.FieldOrder = append(ct.FieldOrder, f.Name)
	}
	return ct
}

func (c *ClassType) Release() {
	c.rc--
	if c.rc <= 0 {
		if c.Parent != nil {
			c.Parent.Release()
		}
		for _, m := range c.Methods {
			m.Release()
		}
	}
}
func (c *ClassType) typeName() string { return "class" }

// ResolveMethod walks the parent chain looking for name, returning the
// owning class too (needed to seed a super proxy one link further up).
func (c *ClassType) ResolveMethod(name string) (*Function, *ClassType) {
	for cur := c; cur != nil; cur = cur.Parent {
		if m, ok := cur.Methods[name]; ok {
			return m, cur
		}
	}
	return nil, nil
}

// IsSubclassOf reports whether c is target or a descendant of it.
func (c *ClassType) IsSubclassOf(target *ClassType) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		if cur == target {
			return true
		}
	}
	return false
}

// InstanceState tracks the lifecycle of a ClassInstance: Fresh right
// after allocation (fields unset), Initializing while __init__ runs
// (field writes permitted, but the object is not yet a legal call
// target), Frozen once construction completes — no new field can be
// added after this point, only existing ones reassigned.
type InstanceState uint8

const (
	StateFresh InstanceState = iota
	StateInitializing
	StateFrozen
)

type ClassInstance struct {
	baseObject
	Class  *ClassType
	Fields map[string]Value
	State  InstanceState
}

func NewClassInstance(class *ClassType) *ClassInstance {
	class.Retain()
	return &ClassInstance{baseObject: baseObject{rc: 1}, Class: class, Fields: make(map[string]Value), State: StateFresh}
}

func (ci *ClassInstance) Release() {
	ci.rc--
	if ci.rc <= 0 {
		ci.Class.Release()
		for _, v := range ci.Fields {
			release(v)
		}
		ci.Fields = nil
	}
}
func (ci *ClassInstance) typeName() string { return ci.Class.Descriptor.Name }

func (ci *ClassInstance) GetField(name string) (Value, bool) {
	v, ok := ci.Fields[name]
	return v, ok
}

func (ci *ClassInstance) SetField(name string, v Value) {
	if old, exists := ci.Fields[name]; exists {
		release(old)
	}
	retain(v)
	ci.Fields[name] = v
}
