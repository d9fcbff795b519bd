package configobject

import "context"

// typeOf wraps a TypeName/Fields pair as a Type without requiring every concrete Go type in this
// package to implement its own zero-method Type value; MemSystem builds these for the caller.
type typeOf struct {
	name   string
	fields []Field
}

func (t typeOf) TypeName() string { return t.name }
func (t typeOf) Fields() []Field  { return t.fields }

// NewType returns a Type identified by name with no declared Fields; it is sufficient for
// dispatch in Serializer/Dependency Emitter, which switch on Go concrete type rather than Fields.
func NewType(name string) Type {
	return typeOf{name: name}
}

// MemSystem is a static, in-memory System: a fixed snapshot of objects grouped by type, with no
// live event stream. It stands in for the real configuration object system in tests and in a
// standalone run of the CLI; Subscribe is a no-op since a MemSystem never changes after
// construction.
type MemSystem struct {
	types   []Type
	objects map[string][]Object
}

// NewMemSystem returns a MemSystem whose Types() are derived from the keys of objectsByType and
// whose ObjectsOfType streams the corresponding slice.
func NewMemSystem(objectsByType map[string][]Object) *MemSystem {
	m := &MemSystem{objects: objectsByType}

	for name := range objectsByType {
		m.types = append(m.types, NewType(name))
	}

	return m
}

func (m *MemSystem) Types() []Type {
	return m.types
}

func (m *MemSystem) ObjectsOfType(ctx context.Context, t Type) (<-chan Object, error) {
	out := make(chan Object)

	go func() {
		defer close(out)

		for _, o := range m.objects[t.TypeName()] {
			if !o.Active() {
				continue
			}

			select {
			case out <- o:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Subscribe is a no-op: a MemSystem is a fixed snapshot and never fires lifecycle events.
func (m *MemSystem) Subscribe(ctx context.Context, h Handlers) {}

var _ System = (*MemSystem)(nil)
