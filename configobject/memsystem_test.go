package configobject

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemSystem_TypesAndObjects(t *testing.T) {
	active := &Host{ObjectBase: ObjectBase{ObjName: "active.example.com", IsActive: true}}
	inactive := &Host{ObjectBase: ObjectBase{ObjName: "inactive.example.com", IsActive: false}}

	sys := NewMemSystem(map[string][]Object{
		"host": {active, inactive},
	})

	require.Len(t, sys.Types(), 1)
	require.Equal(t, "host", sys.Types()[0].TypeName())

	ch, err := sys.ObjectsOfType(context.Background(), sys.Types()[0])
	require.NoError(t, err)

	var got []Object
	for o := range ch {
		got = append(got, o)
	}

	require.Equal(t, []Object{active}, got)
}

func TestMemSystem_ObjectsOfType_UnknownTypeIsEmpty(t *testing.T) {
	sys := NewMemSystem(nil)

	ch, err := sys.ObjectsOfType(context.Background(), NewType("host"))
	require.NoError(t, err)

	_, ok := <-ch
	require.False(t, ok)
}

func TestMemSystem_ObjectsOfType_ContextCancelStopsEarly(t *testing.T) {
	objs := make([]Object, 0, 10)
	for i := 0; i < 10; i++ {
		objs = append(objs, &Host{ObjectBase: ObjectBase{ObjName: "h", IsActive: true}})
	}

	sys := NewMemSystem(map[string][]Object{"host": objs})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := sys.ObjectsOfType(ctx, NewType("host"))
	require.NoError(t, err)

	<-ch
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after context cancellation")
		}
	}
}

func TestMemSystem_SubscribeIsNoop(t *testing.T) {
	sys := NewMemSystem(nil)
	sys.Subscribe(context.Background(), Handlers{})
}

func TestHasExtension(t *testing.T) {
	o := &Host{ObjectBase: ObjectBase{ObjName: "h", ExtensionSet: map[string]struct{}{ConfigObjectDeleted: {}}}}
	require.True(t, HasExtension(o, ConfigObjectDeleted))
	require.False(t, HasExtension(o, "SomethingElse"))

	bare := &Host{ObjectBase: ObjectBase{ObjName: "h2"}}
	require.False(t, HasExtension(bare, ConfigObjectDeleted))
}
