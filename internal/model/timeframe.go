package model

import (
	"fmt"
	"time"
)

// Timeframe is a candle bucket size label ("1m", "5m", "15m", "1h", "4h", "1d").
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var tfDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// Duration returns the bucket duration for the timeframe.
func (tf Timeframe) Duration() (time.Duration, error) {
	d, ok := tfDurations[tf]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
	return d, nil
}

// Seconds returns the bucket duration in seconds, or 0 for unknown timeframes.
func (tf Timeframe) Seconds() int64 {
	d, ok := tfDurations[tf]
	if !ok {
		return 0
	}
	return int64(d / time.Second)
}
