package forecast

import "fmt"

// Units selects the temperature scale used for display.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// DescriptionForCondition maps an OpenWeatherMap condition code to a short
// human-readable description. Codes are grouped by hundreds: 2xx storms,
// 3xx drizzle, 5xx rain, 6xx snow, 7xx atmosphere, 80x clouds.
func DescriptionForCondition(id int) string {
	switch {
	case id >= 200 && id <= 232:
		return "Storm"
	case id >= 300 && id <= 321:
		return "Light Rain"
	case id >= 500 && id <= 504:
		return "Rain"
	case id == 511:
		return "Snow"
	case id >= 520 && id <= 531:
		return "Rain"
	case id >= 600 && id <= 622:
		return "Snow"
	case id >= 701 && id <= 761:
		return "Fog"
	case id == 761 || id == 771 || id == 781:
		return "Storm"
	case id == 800:
		return "Clear"
	case id == 801:
		return "Light Clouds"
	case id >= 802 && id <= 804:
		return "Clouds"
	default:
		return fmt.Sprintf("Unknown (%d)", id)
	}
}

// FormatTemperature renders a Celsius temperature in the preferred unit,
// rounded to whole degrees.
func FormatTemperature(celsius float64, units Units) string {
	if units == Imperial {
		return fmt.Sprintf("%.0f°F", celsius*1.8+32)
	}
	return fmt.Sprintf("%.0f°C", celsius)
}

// Summary builds the one-line text used when notifying the user of fresh
// data, e.g. "Forecast: Clear - High: 14°C Low: 7°C".
func Summary(d Day, units Units) string {
	return fmt.Sprintf("Forecast: %s - High: %s Low: %s",
		DescriptionForCondition(d.ConditionID),
		FormatTemperature(d.MaxTemp, units),
		FormatTemperature(d.MinTemp, units),
	)
}
