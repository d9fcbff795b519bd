package redissync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/identifier"
)

func TestPrepareObject_Host(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}

	a, err := s.PrepareObject(h)
	require.NoError(t, err)
	require.Equal(t, "env1", a["env_id"])
	require.Equal(t, "example.com", a["name"])
	require.Equal(t, identifier.ObjectIdentifier("example.com"), a["name_checksum"])
}

func TestPrepareObject_ServiceUsesShortNameAndHostID(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	svc := &configobject.Service{
		ObjectBase: configobject.ObjectBase{ObjName: "example.com!ping"},
		HostName:   "example.com",
		ShortName:  "ping",
	}

	a, err := s.PrepareObject(svc)
	require.NoError(t, err)
	require.Equal(t, "ping", a["name"])
	require.Equal(t, identifier.ObjectIdentifier("example.com"), a["host_id"])
}

func TestPrepareObject_ZoneParent(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	z := &configobject.Zone{ObjectBase: configobject.ObjectBase{ObjName: "child"}, Parent: "master"}

	a, err := s.PrepareObject(z)
	require.NoError(t, err)
	require.Equal(t, identifier.ObjectIdentifier("master"), a["parent_id"])
}

func TestPrepareObject_ZoneWithoutParentOmitsParentID(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	z := &configobject.Zone{ObjectBase: configobject.ObjectBase{ObjName: "master"}}

	a, err := s.PrepareObject(z)
	require.NoError(t, err)
	_, ok := a["parent_id"]
	require.False(t, ok)
}

func TestPrepareObject_UnsupportedType(t *testing.T) {
	s := Serializer{EnvID: "env1"}

	_, err := s.PrepareObject(unsupportedObject{})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

type unsupportedObject struct{}

func (unsupportedObject) Name() string                     { return "x" }
func (unsupportedObject) Active() bool                      { return true }
func (unsupportedObject) Version() int64                    { return 0 }
func (unsupportedObject) Zone() *configobject.Zone           { return nil }
func (unsupportedObject) CustomVars() map[string]interface{} { return nil }
func (unsupportedObject) Extensions() map[string]struct{}    { return nil }

func TestChecksumFor_MatchesHashValue(t *testing.T) {
	a := Attrs{"a": 1, "b": "two"}

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(ChecksumFor(a)), &decoded))
	require.Equal(t, identifier.HashValue(map[string]interface{}(a)), decoded["checksum"])
}

func TestSerializeState_SplitsOutputOnFirstNewline(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{
		ObjectBase: configobject.ObjectBase{ObjName: "example.com"},
		CheckableBase: configobject.CheckableBase{
			Result: &configobject.CheckResult{Output: "OK - ping\nrta=1ms"},
		},
	}

	state := s.SerializeState("example.com", "host", h, time.Now())
	require.Equal(t, "OK - ping", state["output"])
	require.Equal(t, "rta=1ms", state["long_output"])
}

func TestSerializeState_AcknowledgedPicksLatestAckComment(t *testing.T) {
	s := Serializer{EnvID: "env1"}

	older := &configobject.Comment{
		ObjectBase: configobject.ObjectBase{ObjName: "example.com!older"},
		HostName:   "example.com",
		IsAck:      true,
		EntryTime:  time.Unix(100, 0),
	}
	newer := &configobject.Comment{
		ObjectBase: configobject.ObjectBase{ObjName: "example.com!newer"},
		HostName:   "example.com",
		IsAck:      true,
		EntryTime:  time.Unix(200, 0),
	}
	notAck := &configobject.Comment{
		ObjectBase: configobject.ObjectBase{ObjName: "example.com!notack"},
		HostName:   "example.com",
		IsAck:      false,
		EntryTime:  time.Unix(300, 0),
	}

	h := &configobject.Host{
		ObjectBase: configobject.ObjectBase{ObjName: "example.com"},
		CheckableBase: configobject.CheckableBase{
			Acked:       true,
			CommentList: []*configobject.Comment{older, newer, notAck},
		},
	}

	state := s.SerializeState("example.com", "host", h, time.Now())
	require.Equal(t, identifier.ObjectIdentifier("example.com!newer"), state["acknowledgement_comment_id"])
}

func TestSerializeState_NotAcknowledgedHasNoCommentID(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}

	state := s.SerializeState("example.com", "host", h, time.Now())
	_, ok := state["acknowledgement_comment_id"]
	require.False(t, ok)
}

func TestMarshalAttrs_RoundTripsJSON(t *testing.T) {
	row, err := MarshalAttrs(Attrs{"name": "x"})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"x"}`, row)
}
