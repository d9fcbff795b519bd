package configobject

import "context"

// ConfigObjectDeleted is the extension marker an inactive Object must carry for the Event Router
// to treat its deactivation as a deletion (SendConfigDelete) rather than a mere disablement.
const ConfigObjectDeleted = "ConfigObjectDeleted"

// System is the "configuration object system" external collaborator: it enumerates
// types and their live instances, and fans out the seven lifecycle events the Event Router
// subscribes to. Production code outside this repository supplies the concrete implementation;
// tests use a fake built directly on top of the configobject types.
type System interface {
	// Types returns every registered Type, including ones with no live instances.
	Types() []Type

	// ObjectsOfType returns every currently active Object of the given Type, for use during a
	// full dump. Implementations may stream rather than materialise the full slice.
	ObjectsOfType(ctx context.Context, t Type) (<-chan Object, error)

	// Subscribe registers h to be invoked for every lifecycle event below, for the lifetime of
	// ctx. Subscribe returns once registration has taken effect; handlers are invoked
	// asynchronously by the System as events occur.
	Subscribe(ctx context.Context, h Handlers)
}

// Handlers groups the seven lifecycle callbacks a writer instance registers with a System.
type Handlers struct {
	OnStateChange             func(c Checkable)
	OnAcknowledgementCleared  func(c Checkable)
	OnActiveChanged           func(o Object)
	OnVersionChanged          func(o Object)
	OnDowntimeStarted         func(d *Downtime, anchor Checkable)
	OnDowntimeTriggered       func(d *Downtime, anchor Checkable)
	OnDowntimeRemoved         func(d *Downtime, anchor Checkable)
}
