package simulate

import "time"

// Worker configuration constants.
const (
	workerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	percentageMultiplier = 100
	topShown             = 10
	pollInterval         = 50 * time.Millisecond
)
