package redis

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Streams maps Redis stream names to the last-seen message ID to resume reading from (or "0-0"
// for "from the start", "$" for "only new messages").
type Streams map[string]string

// Option returns the stream names followed by their IDs, the shape XREAD/XREADGROUP expect for
// their STREAMS argument.
func (s Streams) Option() []string {
	list := make([]string, 0, len(s)*2)
	ids := make([]string, 0, len(s))

	for key := range s {
		list = append(list, key)
	}

	for _, key := range list {
		ids = append(ids, s[key])
	}

	return append(list, ids...)
}

// WrapCmdErr adds the failed command's name and args to cmd's error for context.
func WrapCmdErr(cmd redis.Cmder) error {
	return errors.Wrapf(cmd.Err(), "can't perform %q", cmdString(cmd))
}

func cmdString(cmd redis.Cmder) string {
	args := cmd.Args()
	parts := make([]string, 0, len(args))

	for _, arg := range args {
		parts = append(parts, fmt.Sprint(arg))
	}

	s := ""
	for i, p := range parts {
		if i > 0 {
			s += " "
		}
		s += p
	}

	return s
}
