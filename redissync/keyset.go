// Package redissync implements the monitoring-state synchronizer: it projects a configobject.System
// into a Redis-compatible store through the Writer, reusing the redis.Client connection, com
// work-queue primitives, and logging stack.
package redissync

import "fmt"

// Relations lists every relation name a type may emit, customvar first.
var Relations = []string{
	"customvar",
	"groupmember",
	"range",
	"override:include",
	"override:exclude",
	"parent",
	"user",
	"usergroup",
	"argument",
	"envvar",
}

// Keyset names every remote key touched for one typename: the config/checksum/state hashes and
// their relation variants. It is shared by the Dumper's delete-stale-keys step and the Event
// Router's delete path so the relation-name list is not duplicated between them.
type Keyset struct {
	ConfigPrefix   string
	ChecksumPrefix string
	StatePrefix    string
}

// DefaultKeyset is the default remote key layout: "icinga:" for config hashes, "icinga:checksum:"
// for their paired checksums, and "icinga:state:" for runtime state.
var DefaultKeyset = Keyset{
	ConfigPrefix:   "icinga:",
	ChecksumPrefix: "icinga:checksum:",
	StatePrefix:    "icinga:state:",
}

// ConfigHash returns the name of the <config-prefix><typename> hash.
func (k Keyset) ConfigHash(typeName string) string {
	return k.ConfigPrefix + typeName
}

// ChecksumHash returns the name of the <checksum-prefix><typename> hash.
func (k Keyset) ChecksumHash(typeName string) string {
	return k.ChecksumPrefix + typeName
}

// StateHash returns the name of the <state-prefix><typename> hash.
func (k Keyset) StateHash(typeName string) string {
	return k.StatePrefix + typeName
}

// RelationHash returns the name of the <config-prefix><typename>:<relation> hash.
func (k Keyset) RelationHash(typeName, relation string) string {
	return fmt.Sprintf("%s%s:%s", k.ConfigPrefix, typeName, relation)
}

// RelationChecksumHash returns the name of the <checksum-prefix><typename>:<relation> hash.
func (k Keyset) RelationChecksumHash(typeName, relation string) string {
	return fmt.Sprintf("%s%s:%s", k.ChecksumPrefix, typeName, relation)
}

// GlobalHashes returns the four global URL/icon/customvar hashes deleted at the start of every
// full dump.
func (k Keyset) GlobalHashes() []string {
	return []string{
		k.ConfigHash("customvar"),
		k.ConfigHash("action_url"),
		k.ConfigHash("notes_url"),
		k.ConfigHash("icon_image"),
	}
}

// ForType returns every hash name that must be deleted before re-dumping typeName: the config,
// checksum and :customvar hashes, every relation hash the type may use, and the state hash when
// withState is true (checkable/user types).
func (k Keyset) ForType(typeName string, withState bool) []string {
	keys := []string{
		k.ConfigHash(typeName),
		k.ChecksumHash(typeName),
		k.RelationHash(typeName, "customvar"),
		k.RelationChecksumHash(typeName, "customvar"),
	}

	for _, rel := range Relations {
		if rel == "customvar" {
			continue
		}

		keys = append(keys, k.RelationHash(typeName, rel), k.RelationChecksumHash(typeName, rel))
	}

	if withState {
		keys = append(keys, k.StateHash(typeName))
	}

	return keys
}

const (
	// DumpStream is the control stream marking start (wip) and completion (done) of a dump.
	DumpStream = "icinga:dump"
	// HostStateStream receives SerializeState entries for hosts.
	HostStateStream = "icinga:state:stream:host"
	// ServiceStateStream receives SerializeState entries for services.
	ServiceStateStream = "icinga:state:stream:service"
	// ConfigUpdateChannel is published to on every incremental config change.
	ConfigUpdateChannel = "icinga:config:update"
	// ConfigDeleteChannel is published to on every object deletion.
	ConfigDeleteChannel = "icinga:config:delete"
)

// StateStream returns the state stream name for a checkable's typename ("host" or "service").
func StateStream(typeName string) string {
	if typeName == "service" {
		return ServiceStateStream
	}

	return HostStateStream
}
