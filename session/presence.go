package session

import "time"

// Presence is the per-stream record spec §3 describes: "carries a
// presence record {uuid, name, last_keepalive}".
type Presence struct {
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	LastKeepalive time.Time `json:"-"`
}

// KeepaliveTimeout is the fixed presence staleness window spec §4.8
// and §8 name (60 seconds).
const KeepaliveTimeout = 60 * time.Second

type streamEntry struct {
	stream   Stream
	presence Presence
}
