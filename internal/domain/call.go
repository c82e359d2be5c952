package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DetailKind tells which endpoint of a call a detail record reports.
type DetailKind string

const (
	DetailKindStart DetailKind = "start"
	DetailKindEnd   DetailKind = "end"
)

// Valid reports whether the kind is one of the known record types.
func (k DetailKind) Valid() bool {
	return k == DetailKindStart || k == DetailKindEnd
}

// CallDetail is a single start or end record reported by the switch for one
// endpoint of a call's lifetime. Source and destination are present only on
// start records; CallID correlates the start/end pair.
type CallDetail struct {
	ID          uuid.UUID
	Kind        DetailKind
	Timestamp   time.Time
	CallID      int64
	Source      string
	Destination string
}

// Call is the logical pairing of a start and an end detail record sharing a
// CallID. Either reference may be absent while the counterpart record has not
// arrived (or has been retracted); an incomplete call prices at zero.
type Call struct {
	CallID int64
	Start  *CallDetail
	End    *CallDetail
	Price  Cents
}

// Complete reports whether both detail references are present.
func (c *Call) Complete() bool {
	return c.Start != nil && c.End != nil
}

// Empty reports whether both detail references are absent.
func (c *Call) Empty() bool {
	return c.Start == nil && c.End == nil
}

// Duration renders the call duration as "<h>h<m>m<s>s", hours accumulating
// across day boundaries. Incomplete calls render as "0h0m0s".
func (c *Call) Duration() string {
	if !c.Complete() {
		return FormatDuration(0)
	}
	return FormatDuration(c.End.Timestamp.Sub(c.Start.Timestamp))
}

// FormatDuration renders a duration as "<h>h<m>m<s>s" with whole days folded
// into the hour count, e.g. "24h13m43s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh%dm%ds", total/3600, (total%3600)/60, total%60)
}
