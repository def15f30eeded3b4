package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleRoundTrip(t *testing.T) {
	in := `{"total_distance": 15.5, "total_duration": 120, "bookings": [{"id": "b1", "date": "2024-03-20", "address": "123 Main St"}]}`

	s, err := ParseSchedule(in)
	require.NoError(t, err)
	require.NotNil(t, s.TotalDistance)
	assert.Equal(t, 15.5, *s.TotalDistance)
	require.NotNil(t, s.TotalDuration)
	assert.Equal(t, 120.0, *s.TotalDuration)
	require.Len(t, s.Bookings, 1)
	assert.Equal(t, "b1", s.Bookings[0].ID)
	assert.Nil(t, s.Bookings[0].Weather)

	out, err := s.JSON()
	require.NoError(t, err)

	again, err := ParseSchedule(out)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestParseScheduleOptionalFields(t *testing.T) {
	in := `{"bookings": [{"id": "b1", "date": "2024-03-20", "address": "123 Main St", "weather": "sunny", "arrival_time": "09:00", "departure_time": "09:45"}]}`

	s, err := ParseSchedule(in)
	require.NoError(t, err)
	assert.Nil(t, s.TotalDistance)
	require.NotNil(t, s.Bookings[0].Weather)
	assert.Equal(t, "sunny", *s.Bookings[0].Weather)
	require.NotNil(t, s.Bookings[0].ArrivalTime)
	assert.Equal(t, "09:00", *s.Bookings[0].ArrivalTime)
}

func TestParseScheduleRejectsFreeText(t *testing.T) {
	_, err := ParseSchedule("You have 3 bookings today.")
	assert.Error(t, err)
}

func TestParseScheduleRejectsPartialJSON(t *testing.T) {
	_, err := ParseSchedule(`{"bookings": [{"id": "b1"`)
	assert.Error(t, err)
}

func TestParseScheduleRejectsWrongShape(t *testing.T) {
	_, err := ParseSchedule(`{"bookings": "not an array"}`)
	assert.Error(t, err)

	// Missing required booking fields.
	_, err = ParseSchedule(`{"bookings": [{"id": "b1"}]}`)
	assert.Error(t, err)
}

func TestElementText(t *testing.T) {
	assert.Equal(t, "hi", ElementText(TextElement{Text: "hi"}))
	assert.Equal(t, "", ElementText(PayloadElement{Schedule: &Schedule{}}))
}
