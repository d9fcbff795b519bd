package redissync

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/identifier"
)

// InsertObjectDependencies flattens o's relationships into b: custom variables first, then
// whatever relation kinds o's concrete type carries. When runtimeUpdate is true, each
// emitted relation row also publishes a "<typename>:<relation>:<rowId>" notice onto
// ConfigUpdateChannel, mirroring SendConfigUpdate's incremental path.
func (s Serializer) InsertObjectDependencies(o configobject.Object, typeName string, b *Batch, runtimeUpdate bool) {
	objectKey := identifier.ObjectIdentifier(o.Name())

	s.emitCustomVars(o, typeName, objectKey, b, runtimeUpdate)

	switch v := o.(type) {
	case *configobject.Host:
		s.emitCheckableRelations(v, typeName, objectKey, b, runtimeUpdate)
		return
	case *configobject.Service:
		s.emitCheckableRelations(v, typeName, objectKey, b, runtimeUpdate)
		return
	case *configobject.TimePeriod:
		s.emitTimePeriod(v, typeName, objectKey, b, runtimeUpdate)
	case *configobject.Zone:
		s.emitZoneParents(v, typeName, objectKey, b, runtimeUpdate)
	case *configobject.User:
		s.emitGroupMembers(typeName, objectKey, v.Groups, b, runtimeUpdate)
	case *configobject.Notification:
		s.emitNotificationRecipients(v, typeName, objectKey, b, runtimeUpdate)
	case *configobject.CheckCommand:
		s.emitCommandValues(typeName, objectKey, v.Arguments, v.EnvVars, b, runtimeUpdate)
	case *configobject.NotificationCommand:
		s.emitCommandValues(typeName, objectKey, v.Arguments, v.EnvVars, b, runtimeUpdate)
	case *configobject.EventCommand:
		s.emitCommandValues(typeName, objectKey, v.Arguments, v.EnvVars, b, runtimeUpdate)
	}
}

func (s Serializer) emitCustomVars(o configobject.Object, typeName, objectKey string, b *Batch, runtimeUpdate bool) {
	vars := o.CustomVars()
	if len(vars) == 0 {
		return
	}

	for _, k := range sortedKeys(vars) {
		jv, _ := json.Marshal(vars[k])
		b.HSet(DefaultKeyset.ConfigHash("customvar"), k, string(jv))

		rowID := identifier.CheckSumArray([]interface{}{s.EnvID, k, objectKey})
		row := map[string]interface{}{"object_id": objectKey, "env_id": s.EnvID, "customvar_id": k}
		b.HSet(DefaultKeyset.RelationHash(typeName, "customvar"), rowID, mustJSON(row))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:customvar:%s", typeName, rowID))
		}
	}

	checksum := map[string]interface{}{"checksum": identifier.HashValue(vars)}
	b.HSet(DefaultKeyset.RelationChecksumHash(typeName, "customvar"), objectKey, mustJSON(checksum))
}

func (s Serializer) emitCheckableRelations(c configobject.Checkable, typeName, objectKey string, b *Batch, runtimeUpdate bool) {
	s.emitURLHash("action_url", c.ActionURL(), b)
	s.emitURLHash("notes_url", c.NotesURL(), b)
	s.emitURLHash("icon_image", c.IconImage(), b)

	s.emitGroupMembers(typeName, objectKey, c.Groups(), b, runtimeUpdate)
}

func (s Serializer) emitURLHash(kind, value string, b *Batch) {
	if value == "" {
		return
	}

	id := identifier.CheckSumArray([]interface{}{s.EnvID, value})
	b.HSet(DefaultKeyset.ConfigHash(kind), id, value)
}

// emitGroupMembers writes the ":groupmember" relation shared by Host, Service and User: one row
// per group the object belongs to, plus a checksum over the ordered id list.
func (s Serializer) emitGroupMembers(typeName, objectKey string, groups []string, b *Batch, runtimeUpdate bool) {
	if len(groups) == 0 {
		return
	}

	ids := make([]interface{}, len(groups))
	for i, g := range groups {
		groupID := identifier.ObjectIdentifier(g)
		ids[i] = groupID

		rowID := identifier.CheckSumArray([]interface{}{s.EnvID, objectKey, groupID})
		row := map[string]interface{}{"object_id": objectKey, "group_id": groupID, "env_id": s.EnvID}
		b.HSet(DefaultKeyset.RelationHash(typeName, "groupmember"), rowID, mustJSON(row))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:groupmember:%s", typeName, rowID))
		}
	}

	checksum := map[string]interface{}{"checksum": identifier.HashValue(ids)}
	b.HSet(DefaultKeyset.RelationChecksumHash(typeName, "groupmember"), objectKey, mustJSON(checksum))
}

func (s Serializer) emitTimePeriod(tp *configobject.TimePeriod, typeName, objectKey string, b *Batch, runtimeUpdate bool) {
	for _, k := range sortedStringKeys(tp.Ranges) {
		v := tp.Ranges[k]

		rangeID := identifier.CheckSumArray([]interface{}{s.EnvID, k, v})
		rowID := identifier.CheckSumArray([]interface{}{s.EnvID, rangeID, objectKey})
		row := map[string]interface{}{
			"timeperiod_id": objectKey,
			"range_key":     k,
			"range_value":   v,
			"env_id":        s.EnvID,
		}

		b.HSet(DefaultKeyset.RelationHash(typeName, "range"), rowID, mustJSON(row))
		b.HSet(DefaultKeyset.RelationChecksumHash(typeName, "range"), rowID, mustJSON(map[string]interface{}{"checksum": identifier.HashValue(row)}))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:range:%s", typeName, rowID))
		}
	}

	s.emitOverrideList(typeName, objectKey, "override:include", tp.Includes, b, runtimeUpdate)
	s.emitOverrideList(typeName, objectKey, "override:exclude", tp.Excludes, b, runtimeUpdate)
}

func (s Serializer) emitOverrideList(typeName, objectKey, relation string, names []string, b *Batch, runtimeUpdate bool) {
	if len(names) == 0 {
		return
	}

	ids := make([]interface{}, len(names))
	for i, n := range names {
		includeOrExcludeID := identifier.ObjectIdentifier(n)
		ids[i] = includeOrExcludeID

		rowID := identifier.CheckSumArray([]interface{}{s.EnvID, objectKey, relation, includeOrExcludeID})
		row := map[string]interface{}{"timeperiod_id": objectKey, "env_id": s.EnvID, relationIDField(relation): includeOrExcludeID}

		b.HSet(DefaultKeyset.RelationHash(typeName, relation), rowID, mustJSON(row))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:%s:%s", typeName, relation, rowID))
		}
	}

	b.HSet(DefaultKeyset.RelationChecksumHash(typeName, relation), objectKey, mustJSON(map[string]interface{}{"checksum": identifier.HashValue(ids)}))
}

// relationIDField derives the singular row field name ("override:include" -> "include_id") for
// the override and recipient relation kinds, which share this emitOverrideList/emitRecipientList
// shape but differ in their row's id field name.
func relationIDField(relation string) string {
	if idx := strings.LastIndexByte(relation, ':'); idx >= 0 {
		return relation[idx+1:] + "_id"
	}

	return relation + "_id"
}

// emitZoneParents writes one ":parent" row per ancestor in z.Parents, each pointing at
// ObjectIdentifier(parent) rather than the zone's own id.
func (s Serializer) emitZoneParents(z *configobject.Zone, typeName, objectKey string, b *Batch, runtimeUpdate bool) {
	if len(z.Parents) == 0 {
		return
	}

	for _, parent := range z.Parents {
		parentID := identifier.ObjectIdentifier(parent)
		rowID := identifier.CheckSumArray([]interface{}{s.EnvID, objectKey, parentID})
		row := map[string]interface{}{"zone_id": objectKey, "parent_id": parentID, "env_id": s.EnvID}

		b.HSet(DefaultKeyset.RelationHash(typeName, "parent"), rowID, mustJSON(row))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:parent:%s", typeName, rowID))
		}
	}

	allParents := make([]interface{}, len(z.Parents))
	for i, p := range z.Parents {
		allParents[i] = identifier.ObjectIdentifier(p)
	}

	checksum := map[string]interface{}{"checksum": identifier.HashValue(allParents)}
	b.HSet(DefaultKeyset.RelationChecksumHash(typeName, "parent"), objectKey, mustJSON(checksum))
}

func (s Serializer) emitNotificationRecipients(n *configobject.Notification, typeName, objectKey string, b *Batch, runtimeUpdate bool) {
	s.emitRecipientList(typeName, objectKey, "user", n.Users, b, runtimeUpdate)
	s.emitRecipientList(typeName, objectKey, "usergroup", n.UserGroups, b, runtimeUpdate)
}

func (s Serializer) emitRecipientList(typeName, objectKey, relation string, names []string, b *Batch, runtimeUpdate bool) {
	if len(names) == 0 {
		return
	}

	ids := make([]interface{}, len(names))
	for i, n := range names {
		recipientID := identifier.ObjectIdentifier(n)
		ids[i] = recipientID

		rowID := identifier.CheckSumArray([]interface{}{s.EnvID, objectKey, relation, recipientID})
		row := map[string]interface{}{"notification_id": objectKey, "env_id": s.EnvID, relationIDField(relation): recipientID}

		b.HSet(DefaultKeyset.RelationHash(typeName, relation), rowID, mustJSON(row))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:%s:%s", typeName, relation, rowID))
		}
	}

	b.HSet(DefaultKeyset.RelationChecksumHash(typeName, relation), objectKey, mustJSON(map[string]interface{}{"checksum": identifier.HashValue(ids)}))
}

func (s Serializer) emitCommandValues(typeName, objectKey string, args, envVars map[string]configobject.CommandValue, b *Batch, runtimeUpdate bool) {
	s.emitCommandValueSet(typeName, objectKey, "argument", args, b, runtimeUpdate)
	s.emitCommandValueSet(typeName, objectKey, "envvar", envVars, b, runtimeUpdate)
}

func (s Serializer) emitCommandValueSet(typeName, objectKey, relation string, values map[string]configobject.CommandValue, b *Batch, runtimeUpdate bool) {
	if len(values) == 0 {
		return
	}

	for _, key := range sortedCommandValueKeys(values) {
		cv := values[key]
		normalized := normalizeCommandValue(cv)

		rowID := identifier.HashValue([]interface{}{objectKey, key, s.EnvID})
		row := map[string]interface{}{
			"command_id":    objectKey,
			relation + "_key": key,
			"env_id":        s.EnvID,
			"value":         normalized["value"],
		}

		b.HSet(DefaultKeyset.RelationHash(typeName, relation), rowID, mustJSON(row))
		b.HSet(DefaultKeyset.RelationChecksumHash(typeName, relation), rowID, mustJSON(map[string]interface{}{"checksum": identifier.HashValue(originalCommandValue(cv))}))

		if runtimeUpdate {
			b.Publish(ConfigUpdateChannel, fmt.Sprintf("%s:%s:%s", typeName, relation, rowID))
		}
	}
}

// normalizeCommandValue turns a CommandValue's exactly-one-set field into the flat
// {"value": JSON(...)} dictionary shape the remote argument/envvar rows use.
// A Dict value is shallow-cloned with its own "value" key re-encoded, so caller-supplied
// sub-dictionaries survive untouched next to the synthesised "value" wrapper.
func normalizeCommandValue(cv configobject.CommandValue) map[string]interface{} {
	switch {
	case cv.Dict != nil:
		out := make(map[string]interface{}, len(cv.Dict)+1)
		for k, v := range cv.Dict {
			out[k] = v
		}

		out["value"] = mustJSON(cv.Dict)
		return out
	case cv.Array != nil:
		return map[string]interface{}{"value": mustJSON(cv.Array)}
	default:
		return map[string]interface{}{"value": mustJSON(cv.Scalar)}
	}
}

// originalCommandValue returns whichever of CommandValue's three fields is set, for checksumming
// against the pre-normalisation value.
func originalCommandValue(cv configobject.CommandValue) interface{} {
	switch {
	case cv.Dict != nil:
		return cv.Dict
	case cv.Array != nil:
		return cv.Array
	default:
		return cv.Scalar
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

func sortedCommandValueKeys(m map[string]configobject.CommandValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Every value passed through this package originates from JSON-compatible config
		// attributes or relation tuples built in this file; marshaling cannot fail.
		panic(err)
	}

	return string(b)
}
