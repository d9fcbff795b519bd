package redissync

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/identifier"
)

// Serializer flattens live configobject.Object values into the (attributes, checksum) pairs the
// Dumper and Event Router write to the remote store. EnvID is the environment
// identifier prefixed onto every attribute row and relation tuple.
type Serializer struct {
	EnvID string
}

// Attrs is the JSON-serialisable attribute dictionary produced for one object.
type Attrs map[string]interface{}

// ErrUnsupportedType is returned by PrepareObject for any configobject.Object whose concrete type
// is not one of the cases of its type switch.
var ErrUnsupportedType = errors.New("object type not supported for serialization")

// PrepareObject returns the attribute dictionary for o, or ErrUnsupportedType if o's type is not
// one of the recognised config object kinds.
func (s Serializer) PrepareObject(o configobject.Object) (Attrs, error) {
	a := Attrs{
		"name_checksum": identifier.ObjectIdentifier(o.Name()),
		"env_id":        s.EnvID,
		"name":          o.Name(),
	}

	if z := o.Zone(); z != nil {
		a["zone_id"] = identifier.ObjectIdentifier(z.Name())
		a["zone"] = z.Name()
	}

	switch v := o.(type) {
	case *configobject.Host:
		s.prepareCheckable(a, v.Name(), v)
	case *configobject.Service:
		a["name"] = v.ShortName
		a["host_id"] = identifier.ObjectIdentifier(v.HostName)
		s.prepareCheckable(a, v.Name(), v)
	case *configobject.TimePeriod:
		a["prefer_includes"] = v.PreferIncludes
	case *configobject.Zone:
		a["is_global"] = v.Global
		if v.Parent != "" {
			a["parent_id"] = identifier.ObjectIdentifier(v.Parent)
		}
	case *configobject.User:
		// Base attributes only; group membership is a relation.
	case *configobject.UserGroup, *configobject.HostGroup, *configobject.ServiceGroup, *configobject.Endpoint:
		// Base attributes only.
	case *configobject.Notification:
		if v.Command != nil {
			a["command_id"] = identifier.ObjectIdentifier(v.Command.Name())
		}
		if v.Period != nil {
			a["period_id"] = identifier.ObjectIdentifier(v.Period.Name())
		}
		a["times_begin"] = v.TimesBegin.Seconds()
		a["times_end"] = v.TimesEnd.Seconds()
		a["states"] = v.States
		a["types"] = v.Types
		a["notification_interval"] = v.Interval.Seconds()
	case *configobject.CheckCommand:
		a["command"] = v.CommandLine
		a["timeout"] = v.Timeout.Seconds()
	case *configobject.NotificationCommand:
		a["command"] = v.CommandLine
		a["timeout"] = v.Timeout.Seconds()
	case *configobject.EventCommand:
		a["command"] = v.CommandLine
		a["timeout"] = v.Timeout.Seconds()
	case *configobject.Comment:
		a["author"] = v.Author
		a["text"] = v.Text
		a["entry_time"] = v.EntryTime.Unix()
		a["is_acknowledgement"] = v.IsAck
		if v.ServiceName != "" {
			a["service_id"] = identifier.ObjectIdentifier(v.HostName + "!" + v.ServiceName)
		} else {
			a["host_id"] = identifier.ObjectIdentifier(v.HostName)
		}
	case *configobject.Downtime:
		a["author"] = v.AuthorName
		a["comment"] = v.Comment
		a["entry_time"] = v.EntryTime.Unix()
		a["scheduled_start_time"] = v.ScheduledStart.Unix()
		a["scheduled_end_time"] = v.ScheduledEnd.Unix()
		a["is_fixed"] = v.Fixed
		// The primary downtime hash uses is_in_effect/actual_start_time. No in_effect/trigger_time
		// fields are written, neither here nor in the anchor checkable's state or status stream.
		a["is_in_effect"] = v.IsInEffect
		if !v.ActualStartTime.IsZero() {
			a["actual_start_time"] = v.ActualStartTime.Unix()
		}
		if v.ServiceName != "" {
			a["service_id"] = identifier.ObjectIdentifier(v.HostName + "!" + v.ServiceName)
		} else {
			a["host_id"] = identifier.ObjectIdentifier(v.HostName)
		}
	default:
		return nil, ErrUnsupportedType
	}

	return a, nil
}

func (s Serializer) prepareCheckable(a Attrs, objName string, c configobject.Checkable) {
	if cmd := c.CheckCommand(); cmd != nil {
		a["check_command_id"] = identifier.ObjectIdentifier(cmd.Name())
	}

	if cmd := c.EventCommand(); cmd != nil {
		a["event_command_id"] = identifier.ObjectIdentifier(cmd.Name())
	}

	if p := c.CheckPeriod(); p != nil {
		a["check_period_id"] = identifier.ObjectIdentifier(p.Name())
	}

	if ep := c.CommandEndpoint(); ep != nil {
		a["command_endpoint_id"] = identifier.ObjectIdentifier(ep.Name())
	}

	a["action_url_id"] = urlID(s.EnvID, c.ActionURL())
	a["notes_url_id"] = urlID(s.EnvID, c.NotesURL())
	a["icon_image_id"] = urlID(s.EnvID, c.IconImage())
}

// urlID returns the identifier of a non-empty action/notes/icon URL value, or "" when empty.
func urlID(envID, value string) string {
	if value == "" {
		return ""
	}

	return identifier.CheckSumArray([]interface{}{envID, value})
}

// ChecksumFor computes the checksum row paired with an Attrs row, JSON-wrapped like every other
// checksum row this package writes: HashValue(attrRow) == checksumRow.checksum.
func ChecksumFor(a Attrs) string {
	checksum := map[string]interface{}{"checksum": identifier.HashValue(map[string]interface{}(a))}
	return mustJSON(checksum)
}

// SerializeState flattens the current runtime state of a Checkable.
func (s Serializer) SerializeState(objName, typeName string, c configobject.Checkable, now time.Time) Attrs {
	st := c.State()

	a := Attrs{
		"id":                 identifier.ObjectIdentifier(objName),
		"env_id":             s.EnvID,
		"state_type":         typeName,
		"state":              st.Raw,
		"last_soft_state":    st.Raw,
		"last_hard_state":    st.LastHardState,
		"severity":           st.Severity,
		"check_attempt":      st.CheckAttempt,
		"is_active":          c.Active(),
		"is_problem":         !configobject.IsOK(st.Raw),
		"is_handled":         !configobject.IsOK(st.Raw) && (c.InDowntime() || c.Acknowledged()),
		"is_reachable":       st.Reachable,
		"is_flapping":        c.Flapping(),
		"is_acknowledged":    c.Acknowledged(),
		"in_downtime":        c.InDowntime(),
		"last_update":        now.Unix(),
		"last_state_change":  st.LastStateChange.Unix(),
		"next_check":         st.NextCheck.Unix(),
	}

	timeout := c.CheckTimeout()
	if timeout == 0 && c.CheckCommand() != nil {
		timeout = c.CheckCommand().Timeout
	}
	a["check_timeout"] = timeout.Seconds()

	if cr := c.LastCheckResult(); cr != nil {
		if cr.Output != "" {
			if idx := strings.IndexByte(cr.Output, '\n'); idx >= 0 {
				a["output"] = cr.Output[:idx]
				if rest := cr.Output[idx+1:]; rest != "" {
					a["long_output"] = rest
				}
			} else {
				a["output"] = cr.Output
			}
		}

		a["performance_data"] = cr.PerformanceData
		a["commandline"] = cr.CommandLine
		a["execution_time"] = cr.ExecutionTime.Seconds()
		a["latency"] = cr.Latency.Seconds()
	}

	if c.Acknowledged() {
		if id, ok := acknowledgementCommentID(c.Comments()); ok {
			a["acknowledgement_comment_id"] = id
		}
	}

	return a
}

// acknowledgementCommentID returns the identifier of the acknowledgement comment with the
// greatest EntryTime, or ok=false if there is none.
func acknowledgementCommentID(comments []*configobject.Comment) (string, bool) {
	var best *configobject.Comment

	for _, c := range comments {
		if !c.IsAck {
			continue
		}

		if best == nil || c.EntryTime.After(best.EntryTime) {
			best = c
		}
	}

	if best == nil {
		return "", false
	}

	return identifier.ObjectIdentifier(best.Name()), true
}

// MarshalAttrs JSON-encodes a (so it can be written as a hash field value).
func MarshalAttrs(a Attrs) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", errors.Wrap(err, "can't marshal attributes")
	}

	return string(b), nil
}
