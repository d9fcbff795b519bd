package redissync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/identifier"
)

func TestInsertObjectDependencies_CustomVars(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{ObjectBase: configobject.ObjectBase{
		ObjName: "example.com",
		Vars:    map[string]interface{}{"location": "dc1"},
	}}

	b := NewBatch()
	s.InsertObjectDependencies(h, "host", b, false)

	require.NotEmpty(t, b.HMSets[DefaultKeyset.ConfigHash("customvar")])
	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("host", "customvar")])
	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationChecksumHash("host", "customvar")])
}

func TestInsertObjectDependencies_GroupMembersPublishesOnRuntimeUpdate(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{
		ObjectBase:    configobject.ObjectBase{ObjName: "example.com"},
		CheckableBase: configobject.CheckableBase{GroupNames: []string{"linux-servers"}},
	}

	b := NewBatch()
	s.InsertObjectDependencies(h, "host", b, true)

	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("host", "groupmember")])
	require.NotEmpty(t, b.Publishes[ConfigUpdateChannel])
}

func TestEmitGroupMembers_OneRowPerGroup(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{
		ObjectBase:    configobject.ObjectBase{ObjName: "example.com"},
		CheckableBase: configobject.CheckableBase{GroupNames: []string{"linux-servers", "web-servers"}},
	}

	b := NewBatch()
	s.InsertObjectDependencies(h, "host", b, false)

	rows := b.HMSets[DefaultKeyset.RelationHash("host", "groupmember")]
	require.Len(t, rows, 4) // 2 groups * (rowID, row)

	for i := 1; i < len(rows); i += 2 {
		require.Contains(t, rows[i], `"group_id"`)
		require.NotContains(t, rows[i], "group_ids")
	}

	require.Len(t, b.HMSets[DefaultKeyset.RelationChecksumHash("host", "groupmember")], 2)
}

func TestInsertObjectDependencies_NoGroupsEmitsNothing(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}

	b := NewBatch()
	s.InsertObjectDependencies(h, "host", b, false)

	require.Empty(t, b.HMSets[DefaultKeyset.RelationHash("host", "groupmember")])
}

func TestEmitZoneParents_UsesAncestorIdentifier(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	z := &configobject.Zone{
		ObjectBase: configobject.ObjectBase{ObjName: "child"},
		Parents:    []string{"master"},
	}

	b := NewBatch()
	s.InsertObjectDependencies(z, "zone", b, false)

	rows := b.HMSets[DefaultKeyset.RelationHash("zone", "parent")]
	require.Len(t, rows, 2)
	require.Contains(t, rows[1], identifier.ObjectIdentifier("master"))
}

func TestEmitTimePeriod_RangesAndOverrides(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	tp := &configobject.TimePeriod{
		ObjectBase: configobject.ObjectBase{ObjName: "24x7"},
		Ranges:     map[string]string{"monday": "00:00-24:00"},
		Includes:   []string{"holidays"},
		Excludes:   []string{"blackout"},
	}

	b := NewBatch()
	s.InsertObjectDependencies(tp, "timeperiod", b, false)

	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("timeperiod", "range")])
	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("timeperiod", "override:include")])
	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("timeperiod", "override:exclude")])
}

func TestEmitNotificationRecipients_UsersAndGroups(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	n := &configobject.Notification{
		ObjectBase: configobject.ObjectBase{ObjName: "notify-host"},
		Users:      []string{"jdoe"},
		UserGroups: []string{"oncall"},
	}

	b := NewBatch()
	s.InsertObjectDependencies(n, "notification", b, false)

	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("notification", "user")])
	require.NotEmpty(t, b.HMSets[DefaultKeyset.RelationHash("notification", "usergroup")])
}

func TestEmitRecipientList_OneRowPerRecipient(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	n := &configobject.Notification{
		ObjectBase: configobject.ObjectBase{ObjName: "notify-host"},
		Users:      []string{"jdoe", "jsmith"},
		UserGroups: []string{"oncall", "escalation"},
	}

	b := NewBatch()
	s.InsertObjectDependencies(n, "notification", b, false)

	userRows := b.HMSets[DefaultKeyset.RelationHash("notification", "user")]
	require.Len(t, userRows, 4) // 2 users * (rowID, row)
	for i := 1; i < len(userRows); i += 2 {
		require.Contains(t, userRows[i], `"user_id"`)
		require.NotContains(t, userRows[i], "user_ids")
	}

	groupRows := b.HMSets[DefaultKeyset.RelationHash("notification", "usergroup")]
	require.Len(t, groupRows, 4) // 2 groups * (rowID, row)
	for i := 1; i < len(groupRows); i += 2 {
		require.Contains(t, groupRows[i], `"usergroup_id"`)
		require.NotContains(t, groupRows[i], "usergroup_ids")
	}
}

func TestEmitOverrideList_OneRowPerInclude(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	tp := &configobject.TimePeriod{
		ObjectBase: configobject.ObjectBase{ObjName: "24x7"},
		Includes:   []string{"holidays", "maintenance"},
	}

	b := NewBatch()
	s.InsertObjectDependencies(tp, "timeperiod", b, false)

	rows := b.HMSets[DefaultKeyset.RelationHash("timeperiod", "override:include")]
	require.Len(t, rows, 4) // 2 includes * (rowID, row)
	for i := 1; i < len(rows); i += 2 {
		require.Contains(t, rows[i], `"include_id"`)
		require.NotContains(t, rows[i], "timeperiod_ids")
	}
}

func TestEmitCommandValues_ScalarArrayAndDict(t *testing.T) {
	s := Serializer{EnvID: "env1"}
	cmd := &configobject.CheckCommand{}
	cmd.ObjName = "check_ping"
	cmd.Arguments = map[string]configobject.CommandValue{
		"-H": {Scalar: "$host.address$"},
		"-w": {Array: []interface{}{1, 2, 3}},
		"-c": {Dict: map[string]interface{}{"value": "5,10%"}},
	}

	b := NewBatch()
	s.InsertObjectDependencies(cmd, "checkcommand", b, false)

	rows := b.HMSets[DefaultKeyset.RelationHash("checkcommand", "argument")]
	require.Len(t, rows, 6) // 3 args * (rowID, row)
}

func TestNormalizeCommandValue_EachKindProducesValueKey(t *testing.T) {
	scalar := normalizeCommandValue(configobject.CommandValue{Scalar: "x"})
	require.Contains(t, scalar, "value")

	array := normalizeCommandValue(configobject.CommandValue{Array: []interface{}{1, 2}})
	require.Contains(t, array, "value")

	dict := normalizeCommandValue(configobject.CommandValue{Dict: map[string]interface{}{"set_if": "$a$"}})
	require.Contains(t, dict, "value")
	require.Contains(t, dict, "set_if")
}

func TestSortedKeys_Deterministic(t *testing.T) {
	m := map[string]interface{}{"z": 1, "a": 2, "m": 3}
	require.Equal(t, []string{"a", "m", "z"}, sortedKeys(m))
}
