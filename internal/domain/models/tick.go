package models

import "time"

// Tick is one trade print received from a market stream or the ingest
// topic.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Timestamp int64     `json:"t"` // unix milliseconds
	Price     float64   `json:"c"`
	Volume    float64   `json:"v"`
	Source    string    `json:"source,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
	Seq       uint64    `json:"seq,omitempty"`
	Received  time.Time `json:"-"`
}

// Time returns the trade time in UTC.
func (t *Tick) Time() time.Time { return time.UnixMilli(t.Timestamp).UTC() }
