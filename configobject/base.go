package configobject

import "time"

// ObjectBase is embedded by every concrete config object and implements Object.
type ObjectBase struct {
	ObjName      string
	IsActive     bool
	ObjVersion   int64
	BindingZone  *Zone
	Vars         map[string]interface{}
	ExtensionSet map[string]struct{}
}

func (o *ObjectBase) Name() string                       { return o.ObjName }
func (o *ObjectBase) Active() bool                        { return o.IsActive }
func (o *ObjectBase) Version() int64                      { return o.ObjVersion }
func (o *ObjectBase) Zone() *Zone                          { return o.BindingZone }
func (o *ObjectBase) CustomVars() map[string]interface{}   { return o.Vars }
func (o *ObjectBase) Extensions() map[string]struct{}      { return o.ExtensionSet }

// CheckableBase is embedded by Host and Service and implements the Checkable-specific half of
// that interface; Object methods come from the also-embedded ObjectBase.
type CheckableBase struct {
	CurrentState    CheckableState
	Result          *CheckResult
	Check           *CheckCommand
	Event           *EventCommand
	Period          *TimePeriod
	Endpoint        *Endpoint
	GroupNames      []string
	ActionURLValue  string
	NotesURLValue   string
	IconImageValue  string
	CommentList     []*Comment
	Downtimed       bool
	Acked           bool
	IsFlapping      bool
	CheckTimeoutDur time.Duration
}

func (c *CheckableBase) State() CheckableState         { return c.CurrentState }
func (c *CheckableBase) LastCheckResult() *CheckResult { return c.Result }
func (c *CheckableBase) CheckCommand() *CheckCommand   { return c.Check }
func (c *CheckableBase) EventCommand() *EventCommand   { return c.Event }
func (c *CheckableBase) CheckPeriod() *TimePeriod      { return c.Period }
func (c *CheckableBase) CommandEndpoint() *Endpoint    { return c.Endpoint }
func (c *CheckableBase) Groups() []string              { return c.GroupNames }
func (c *CheckableBase) ActionURL() string             { return c.ActionURLValue }
func (c *CheckableBase) NotesURL() string              { return c.NotesURLValue }
func (c *CheckableBase) IconImage() string             { return c.IconImageValue }
func (c *CheckableBase) Comments() []*Comment          { return c.CommentList }
func (c *CheckableBase) InDowntime() bool              { return c.Downtimed }
func (c *CheckableBase) Acknowledged() bool            { return c.Acked }
func (c *CheckableBase) Flapping() bool                { return c.IsFlapping }
func (c *CheckableBase) CheckTimeout() time.Duration   { return c.CheckTimeoutDur }

var (
	_ Object = (*Host)(nil)
	_ Object = (*Service)(nil)
	_ Object = (*TimePeriod)(nil)
	_ Object = (*Zone)(nil)
	_ Object = (*User)(nil)
	_ Object = (*UserGroup)(nil)
	_ Object = (*HostGroup)(nil)
	_ Object = (*ServiceGroup)(nil)
	_ Object = (*Endpoint)(nil)
	_ Object = (*Comment)(nil)
	_ Object = (*Downtime)(nil)
	_ Object = (*Notification)(nil)
	_ Object = (*CheckCommand)(nil)
	_ Object = (*NotificationCommand)(nil)
	_ Object = (*EventCommand)(nil)

	_ Checkable = (*Host)(nil)
	_ Checkable = (*Service)(nil)
)
