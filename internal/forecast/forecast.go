package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Day is one cached day of forecast data. Temperatures are always stored in
// Celsius; unit preference is applied at display time only.
type Day struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	ConditionID int       `json:"condition_id"`
	MinTemp     float64   `json:"min_temp"`
	MaxTemp     float64   `json:"max_temp"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	WindDegrees float64   `json:"wind_degrees"`
}

// ErrInvalidDay is returned for a record with an unset date, an unknown
// condition, or a non-finite numeric field.
var ErrInvalidDay = errors.New("invalid forecast day")

// Validate checks that every field carries a usable value. A decoder that
// could not find a field leaves NaN behind; such records must never reach
// the database.
func (d Day) Validate() error {
	if d.Date.IsZero() {
		return fmt.Errorf("%w: date not set", ErrInvalidDay)
	}
	if !d.Date.Equal(NormalizeDate(d.Date)) {
		return fmt.Errorf("%w: date %s not normalized to midnight UTC", ErrInvalidDay, d.Date)
	}
	if d.ConditionID <= 0 {
		return fmt.Errorf("%w: condition id %d", ErrInvalidDay, d.ConditionID)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"min_temp", d.MinTemp},
		{"max_temp", d.MaxTemp},
		{"humidity", d.Humidity},
		{"pressure", d.Pressure},
		{"wind_speed", d.WindSpeed},
		{"wind_degrees", d.WindDegrees},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidDay, f.name)
		}
	}
	return nil
}

// NormalizeDate truncates t to midnight UTC of its calendar day. Normalized
// dates are the dedup key for forecast rows.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current day normalized to midnight UTC.
func Today() time.Time {
	return NormalizeDate(time.Now())
}

// DateToMillis converts a date to the epoch-millisecond form it is stored as.
func DateToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// DateFromMillis is the inverse of DateToMillis.
func DateFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
