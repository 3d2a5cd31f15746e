package schema

import "github.com/lucsky/cuid"

// NewID returns a process-unique identifier for screens, rows, fields
// and entry keys. Collision-resistant cuids stay unique under rapid
// repeated calls, so two ids generated back to back never collide.
func NewID() string {
	return cuid.New()
}
