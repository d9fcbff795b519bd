package redis

import "github.com/redis/go-redis/v9"

// DumpResetScript atomically appends a new {type:"*", state:"wip"} entry to the icinga:dump
// stream and deletes every older entry, returning the new entry's ID. It must run as a single
// server-side operation so concurrent subscribers never observe an empty stream.
var DumpResetScript = redis.NewScript(`
local key = KEYS[1]
local wipId = redis.call('XADD', key, '*', 'type', '*', 'state', 'wip')
local entries = redis.call('XRANGE', key, '-', '+')
for _, entry in ipairs(entries) do
	if entry[1] ~= wipId then
		redis.call('XDEL', key, entry[1])
	end
end
return wipId
`)
