package domain

import "time"

// AlertRecord is the last value alert sent for a runner key.
type AlertRecord struct {
	RunnerKey string
	SentAt    time.Time
	Edge      float64
	BookPrice float64
	LayPrice  float64
	Count     int
}
