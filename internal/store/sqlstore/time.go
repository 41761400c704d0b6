package sqlstore

import (
	"fmt"
	"time"
)

// TextTimeLayout is fixed width, so stored values sort lexically in time order.
const TextTimeLayout = "2006-01-02 15:04:05.000000000"

const TextDateLayout = "2006-01-02"

var parseLayouts = []string{
	TextTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	TextDateLayout,
}

// TextTime and TextDate encode parameters for engines without native timestamp types.
func TextTime(t time.Time) any {
	return t.UTC().Format(TextTimeLayout)
}

func TextDate(t time.Time) any {
	return dateOnly(t).Format(TextDateLayout)
}

// dbTime scans native timestamps as well as their text encodings.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
}

func (t *dbTime) parse(value string) error {
	for _, layout := range parseLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognised time %q", value)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
