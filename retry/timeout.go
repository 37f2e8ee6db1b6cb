package retry

import "time"

// Timeout bounds a single attempt. The attempt's context is cancelled when it
// elapses; an attempt that then fails is handed to the schedule like any
// other failure. Zero means no per-attempt limit.
type Timeout time.Duration
