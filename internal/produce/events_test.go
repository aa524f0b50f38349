package produce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/townfeed/internal/produce"
)

func TestDeriveEvents_GroupsByDate(t *testing.T) {
	rows := []produce.AnalyticsRow{
		{RawName: "Ramps", DisplayName: "Ramps", IsNew: true, FirstSeen: "2025-04-10"},
		{RawName: "Morels", DisplayName: "Morels", IsNew: true, FirstSeen: "2025-04-10"},
		{RawName: "Fiddleheads", DisplayName: "Fiddleheads", IsNew: true, FirstSeen: "2025-04-12"},
		{RawName: "Parsnips", DisplayName: "Parsnips", IsUnavailable: true, UnavailableSince: "2025-04-12"},
	}

	events := produce.DeriveEvents(rows)
	require.Len(t, events, 2)

	assert.Equal(t, "2025-04-10", events[0].Date)
	assert.Equal(t, []string{"Morels", "Ramps"}, events[0].Arrivals)
	assert.Empty(t, events[0].Departures)

	assert.Equal(t, "2025-04-12", events[1].Date)
	assert.Equal(t, []string{"Fiddleheads"}, events[1].Arrivals)
	assert.Equal(t, []string{"Parsnips"}, events[1].Departures)
}

func TestDeriveEvents_SkipsRowsWithoutDates(t *testing.T) {
	rows := []produce.AnalyticsRow{
		{RawName: "Kale", DisplayName: "Kale", IsNew: true},
		{RawName: "Leeks", DisplayName: "Leeks", IsUnavailable: true},
		{RawName: "Chard", DisplayName: "Chard"},
	}

	events := produce.DeriveEvents(rows)
	assert.Empty(t, events)
}

func TestDeriveEvents_NewButDepartedCountsAsDepartureOnly(t *testing.T) {
	rows := []produce.AnalyticsRow{
		{
			RawName:          "Garlic Scapes",
			DisplayName:      "Garlic Scapes",
			IsNew:            true,
			FirstSeen:        "2025-06-01",
			IsUnavailable:    true,
			UnavailableSince: "2025-06-05",
		},
	}

	events := produce.DeriveEvents(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-06-05", events[0].Date)
	assert.Empty(t, events[0].Arrivals)
	assert.Equal(t, []string{"Garlic Scapes"}, events[0].Departures)
}
