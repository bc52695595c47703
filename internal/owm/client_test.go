package owm_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/skycast/internal/forecast"
	"github.com/skycast/skycast/internal/owm"
)

var start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func forecastDoc(days int) map[string]any {
	list := make([]map[string]any, 0, days)
	for i := 0; i < days; i++ {
		list = append(list, map[string]any{
			"temp":     map[string]any{"min": 7.0 + float64(i), "max": 14.0 + float64(i)},
			"pressure": 1013.0,
			"humidity": 60.0,
			"speed":    3.5,
			"deg":      180.0,
			"weather":  []map[string]any{{"id": 800}},
		})
	}
	return map[string]any{"cod": "200", "list": list}
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// ---- Fetch tests ----

func TestFetch_Success(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(forecastDoc(3))
	}))
	defer srv.Close()

	c := owm.NewClientWithURL(srv.URL, "test-key")
	doc, err := c.Fetch(context.Background(), "94043,US", 3)
	require.NoError(t, err)
	require.NotEmpty(t, doc)

	assert.Contains(t, capturedQuery, "q=94043%2CUS")
	assert.Contains(t, capturedQuery, "cnt=3")
	assert.Contains(t, capturedQuery, "appid=test-key")
	assert.Contains(t, capturedQuery, "units=metric")
}

func TestFetch_Non200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := owm.NewClientWithURL(srv.URL, "test-key")
	_, err := c.Fetch(context.Background(), "94043,US", 14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse all connections

	c := owm.NewClientWithURL(srv.URL, "test-key")
	_, err := c.Fetch(context.Background(), "94043,US", 14)
	require.Error(t, err)
}

func TestFetch_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := owm.NewClientWithURL(srv.URL, "test-key")
	for i := 0; i < 10; i++ {
		_, err := c.Fetch(context.Background(), "94043,US", 14)
		require.Error(t, err)
	}

	// The breaker trips after consecutive failures, so later attempts
	// fail fast without reaching the server.
	assert.Less(t, calls, 10)
}

// ---- Decode tests ----

func TestDecode_Success(t *testing.T) {
	days, err := owm.Decode(marshal(t, forecastDoc(3)), start)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, start, days[0].Date)
	assert.Equal(t, start.AddDate(0, 0, 1), days[1].Date)
	assert.Equal(t, start.AddDate(0, 0, 2), days[2].Date)

	assert.Equal(t, 800, days[0].ConditionID)
	assert.Equal(t, 7.0, days[0].MinTemp)
	assert.Equal(t, 14.0, days[0].MaxTemp)
	assert.Equal(t, 15.0, days[1].MaxTemp)

	for _, d := range days {
		require.NoError(t, d.Validate())
	}
}

func TestDecode_NormalizesStart(t *testing.T) {
	days, err := owm.Decode(marshal(t, forecastDoc(1)), start.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, start, days[0].Date)
}

func TestDecode_EmptyListIsValid(t *testing.T) {
	days, err := owm.Decode(marshal(t, map[string]any{"cod": "200", "list": []any{}}), start)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestDecode_ErrorStatusCode(t *testing.T) {
	doc := marshal(t, map[string]any{"cod": "404", "message": "city not found"})
	_, err := owm.Decode(doc, start)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDecode_NumericStatusCode(t *testing.T) {
	// The API sometimes reports cod as a bare number.
	doc := []byte(`{"cod": 404}`)
	_, err := owm.Decode(doc, start)
	require.Error(t, err)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := owm.Decode([]byte("not-json"), start)
	require.Error(t, err)
}

func TestDecode_MissingFieldBecomesInvalidDay(t *testing.T) {
	doc := forecastDoc(1)
	entry := doc["list"].([]map[string]any)[0]
	delete(entry, "humidity")

	days, err := owm.Decode(marshal(t, doc), start)
	require.NoError(t, err)
	require.Len(t, days, 1)

	assert.True(t, math.IsNaN(days[0].Humidity))
	assert.ErrorIs(t, days[0].Validate(), forecast.ErrInvalidDay)
}

func TestDecode_MissingWeatherBecomesInvalidDay(t *testing.T) {
	doc := forecastDoc(1)
	entry := doc["list"].([]map[string]any)[0]
	delete(entry, "weather")

	days, err := owm.Decode(marshal(t, doc), start)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.ErrorIs(t, days[0].Validate(), forecast.ErrInvalidDay)
}
