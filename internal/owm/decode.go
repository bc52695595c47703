package owm

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/skycast/skycast/internal/forecast"
)

// apiResponse mirrors the daily-forecast document. Numeric fields are
// pointers so an absent field is distinguishable from a zero; absent fields
// become NaN in the decoded record and are rejected by validation at write
// time rather than silently stored.
type apiResponse struct {
	Cod  json.Number `json:"cod"`
	List []apiDay    `json:"list"`
}

type apiDay struct {
	Temp *struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"temp"`
	Pressure *float64 `json:"pressure"`
	Humidity *float64 `json:"humidity"`
	Speed    *float64 `json:"speed"`
	Deg      *float64 `json:"deg"`
	Weather  []struct {
		ID int `json:"id"`
	} `json:"weather"`
}

// Decode parses a forecast document into per-day records. Dates are assigned
// positionally from start (midnight UTC): entry i represents start + i days.
// The embedded datetimes are ignored, matching the upstream API's in-order
// day list. A document with an error status code or malformed JSON fails;
// an empty list is a valid result.
func Decode(doc []byte, start time.Time) ([]forecast.Day, error) {
	var raw apiResponse
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling forecast document: %w", err)
	}

	if raw.Cod != "" {
		code, err := raw.Cod.Int64()
		if err != nil {
			return nil, fmt.Errorf("parsing status code %q: %w", raw.Cod, err)
		}
		if code != http.StatusOK {
			return nil, fmt.Errorf("forecast document reports status %d", code)
		}
	}

	start = forecast.NormalizeDate(start)

	days := make([]forecast.Day, 0, len(raw.List))
	for i, entry := range raw.List {
		day := forecast.Day{
			Date:        start.AddDate(0, 0, i),
			MinTemp:     math.NaN(),
			MaxTemp:     math.NaN(),
			Humidity:    deref(entry.Humidity),
			Pressure:    deref(entry.Pressure),
			WindSpeed:   deref(entry.Speed),
			WindDegrees: deref(entry.Deg),
		}
		if entry.Temp != nil {
			day.MinTemp = deref(entry.Temp.Min)
			day.MaxTemp = deref(entry.Temp.Max)
		}
		if len(entry.Weather) > 0 {
			day.ConditionID = entry.Weather[0].ID
		}
		days = append(days, day)
	}

	return days, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}
