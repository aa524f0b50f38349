package produce

import "sort"

// ProduceEvent aggregates the items that newly appeared or newly became
// unavailable on one calendar date. The date is a local calendar day for
// downstream feed-window filtering.
type ProduceEvent struct {
	Date       string   `json:"date"`
	Arrivals   []string `json:"arrivals,omitempty"`
	Departures []string `json:"departures,omitempty"`
}

// DeriveEvents converts analytics rows into date-keyed feed events. New
// arrivals group by their first-observed date, departures by the date the
// item stopped appearing. Item lists are sorted by display name, events
// by date ascending.
func DeriveEvents(rows []AnalyticsRow) []ProduceEvent {
	arrivals := make(map[string][]string)
	departures := make(map[string][]string)

	for _, row := range rows {
		if row.IsNew && row.FirstSeen != "" && !row.IsUnavailable {
			arrivals[row.FirstSeen] = append(arrivals[row.FirstSeen], row.DisplayName)
		}
		if row.IsUnavailable && row.UnavailableSince != "" {
			departures[row.UnavailableSince] = append(departures[row.UnavailableSince], row.DisplayName)
		}
	}

	dates := make(map[string]struct{})
	for d := range arrivals {
		dates[d] = struct{}{}
	}
	for d := range departures {
		dates[d] = struct{}{}
	}

	events := make([]ProduceEvent, 0, len(dates))
	for d := range dates {
		sort.Strings(arrivals[d])
		sort.Strings(departures[d])
		events = append(events, ProduceEvent{
			Date:       d,
			Arrivals:   arrivals[d],
			Departures: departures[d],
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	return events
}
