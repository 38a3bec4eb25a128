// Package clock abstracts wall-clock reads so TTL and retention logic can be
// driven deterministically in tests.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}
