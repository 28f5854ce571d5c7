package events

import (
	"os"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID names this process inside the bookmark_listeners group as
// host-pid-ulid. Redis keeps pending entries per consumer name, so two live
// processes must never share one: replicas differ by host or pid, and the
// ULID separates a restarted process that reuses a pid. Entries left behind
// by a dead consumer are reclaimed with XAUTOCLAIM.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "subscriber"
	}
	return strings.Join([]string{host, strconv.Itoa(os.Getpid()), ulid.Make().String()}, "-")
}
