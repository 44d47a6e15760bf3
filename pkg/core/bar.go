package core

import (
	"fmt"
	"strconv"
	"time"
)

// Bar represents one trading day of OHLCV data. Close is the adjusted close.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// GetTime returns the timestamp of the bar
func (b Bar) GetTime() time.Time { return b.Time }

// GetClose returns the adjusted closing price of the bar
func (b Bar) GetClose() float64 { return b.Close }

// IsEmpty checks if the bar contains no significant data
func (b Bar) IsEmpty() bool { return b.Time.IsZero() && b.Close == 0 && b.Open == 0 && b.Volume == 0 }

// ToSlice converts a bar to a string slice for serialization
// with the specified decimal precision
func (b Bar) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", b.Time.Unix()),
		strconv.FormatFloat(b.Open, 'f', precision, 64),
		strconv.FormatFloat(b.Close, 'f', precision, 64),
		strconv.FormatFloat(b.Low, 'f', precision, 64),
		strconv.FormatFloat(b.High, 'f', precision, 64),
		strconv.FormatFloat(b.Volume, 'f', precision, 64),
	}
}
