package api

import (
	"time"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// timestampLayouts are tried in order. The backend emits naive UTC
// timestamps without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO 8601 timestamp. Zoneless values are UTC.
// Returns the zero time for empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// ToRecord converts a REST price into the stream's PriceRecord.
func (p PriceData) ToRecord() model.PriceRecord {
	return model.PriceRecord{
		Symbol:        p.Symbol,
		Price:         p.Price,
		PreviousClose: p.PreviousClose,
		Change:        p.Change,
		ChangePercent: p.ChangePercent,
		Volume:        p.Volume,
		Timestamp:     p.Timestamp,
	}
}

// ToEvent converts a triggered alert into the event the stream delivers.
func (a Alert) ToEvent() model.TriggeredAlertEvent {
	return model.TriggeredAlertEvent{
		ID:          a.ID,
		Symbol:      a.Symbol,
		Condition:   a.Condition,
		TargetPrice: a.TargetPrice,
	}
}
