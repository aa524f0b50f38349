package produce

import (
	"errors"
	"sort"
	"time"
)

// ErrNoData signals that no partitions (or no records at all) were
// available for an analytics query. Callers must distinguish this from an
// empty-but-valid result.
var ErrNoData = errors.New("no produce data available")

// AnalyticsRow joins an item's current record with its comparison
// baselines. Baseline pointers are nil when no records fall in the
// window; callers render an explicit gap, never a synthetic zero.
type AnalyticsRow struct {
	RawName       string   `json:"rawName"`
	DisplayName   string   `json:"displayName"`
	Date          string   `json:"date"`
	Price         float64  `json:"price"`
	PriceUnparsed bool     `json:"priceUnparsed"`
	Unit          string   `json:"unit"`
	Organic       bool     `json:"organic"`
	IPM           bool     `json:"ipm"`
	Waxed         bool     `json:"waxed"`
	LocalOrigin   bool     `json:"localOrigin"`
	Hydroponic    bool     `json:"hydroponic"`
	Origin        string   `json:"origin"`
	PrevDayPrice  *float64 `json:"prevDayPrice,omitempty"`
	PrevWeekPrice *float64 `json:"prevWeekPrice,omitempty"`
	// PrevMonthPrice is a trailing 30-day mean; IsNew is judged against
	// the prior calendar month. The two windows differ on purpose.
	PrevMonthPrice   *float64 `json:"prevMonthPrice,omitempty"`
	IsNew            bool     `json:"isNew"`
	FirstSeen        string   `json:"firstSeen"`
	IsUnavailable    bool     `json:"isUnavailable"`
	UnavailableSince string   `json:"unavailableSince,omitempty"`
}

const dateLayout = "2006-01-02"

// AnalyticsEngine computes current prices and historical baselines over
// in-memory partition unions. Each invocation is an independent pure
// computation; the engine holds no state.
type AnalyticsEngine struct{}

// NewAnalyticsEngine creates an AnalyticsEngine.
func NewAnalyticsEngine() *AnalyticsEngine {
	return &AnalyticsEngine{}
}

// ComputeCurrent unions the supplied partitions and derives one row per
// distinct RawName present on the latest date, joined with day, week, and
// month baselines, plus arrival and departure tracking for every RawName
// ever observed. Returns ErrNoData when the union is empty.
func (e *AnalyticsEngine) ComputeCurrent(partitions ...[]ItemRecord) ([]AnalyticsRow, error) {
	var union []ItemRecord
	for _, p := range partitions {
		union = append(union, p...)
	}
	if len(union) == 0 {
		return nil, ErrNoData
	}

	latestDate := ""
	byName := make(map[string][]ItemRecord)
	for _, r := range union {
		if r.Date > latestDate {
			latestDate = r.Date
		}
		byName[r.RawName] = append(byName[r.RawName], r)
	}

	latest, err := time.Parse(dateLayout, latestDate)
	if err != nil {
		return nil, ErrNoData
	}
	weekStart := latest.AddDate(0, 0, -7).Format(dateLayout)
	monthStart := latest.AddDate(0, 0, -30).Format(dateLayout)
	// Anchor to the first of the month before stepping back, so that
	// month-end dates do not normalize into the wrong month.
	firstOfMonth := time.Date(latest.Year(), latest.Month(), 1, 0, 0, 0, 0, time.UTC)
	priorMonth := firstOfMonth.AddDate(0, -1, 0).Format("2006-01")

	var rows []AnalyticsRow
	for rawName, history := range byName {
		sort.Slice(history, func(i, j int) bool { return history[i].Date < history[j].Date })

		lastObserved := history[len(history)-1].Date
		firstSeen := history[0].Date

		var current *ItemRecord
		if lastObserved == latestDate {
			// First record on the latest date wins when duplicates share
			// a RawName; the parser already drops same-slug duplicates.
			for i := range history {
				if history[i].Date == latestDate {
					current = &history[i]
					break
				}
			}
		}

		row := AnalyticsRow{
			RawName:     rawName,
			DisplayName: DisplayName(rawName),
			FirstSeen:   firstSeen,
			IsNew:       isNewInMonth(history, priorMonth),
		}

		if current != nil {
			row.Date = current.Date
			row.Price = current.Price
			row.PriceUnparsed = current.PriceUnparsed
			row.Unit = current.Unit
			row.Organic = current.Organic
			row.IPM = current.IPM
			row.Waxed = current.Waxed
			row.LocalOrigin = current.LocalOrigin
			row.Hydroponic = current.Hydroponic
			row.Origin = current.Origin
			row.PrevDayPrice = prevDayPrice(history, latestDate)
			row.PrevWeekPrice = meanPrice(history, weekStart, latestDate)
			row.PrevMonthPrice = meanPrice(history, monthStart, latestDate)
		} else {
			// Previously seen but absent on the latest date: unavailable
			// as of the day after its last observation.
			last, err := time.Parse(dateLayout, lastObserved)
			if err != nil {
				continue
			}
			row.Date = lastObserved
			row.IsUnavailable = true
			row.UnavailableSince = last.AddDate(0, 0, 1).Format(dateLayout)
		}

		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DisplayName < rows[j].DisplayName })
	return rows, nil
}

// prevDayPrice returns the price on the single most recent date strictly
// before latestDate, or nil if none exists. Not an average. Records whose
// price never parsed carry a placeholder zero and are excluded.
func prevDayPrice(history []ItemRecord, latestDate string) *float64 {
	var best *ItemRecord
	for i := range history {
		r := &history[i]
		if r.Date >= latestDate || r.PriceUnparsed {
			continue
		}
		if best == nil || r.Date > best.Date {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	price := best.Price
	return &price
}

// meanPrice returns the arithmetic mean of parsed prices over dates in
// [start, latestDate] inclusive, or nil when the window is empty. The
// latest day participates in its own trailing averages.
func meanPrice(history []ItemRecord, start, latestDate string) *float64 {
	sum := 0.0
	count := 0
	for _, r := range history {
		if r.PriceUnparsed {
			continue
		}
		if r.Date >= start && r.Date <= latestDate {
			sum += r.Price
			count++
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}

// isNewInMonth reports whether no record exists in the calendar month
// immediately preceding the latest date's month. A vacuously empty prior
// month makes the item new.
func isNewInMonth(history []ItemRecord, priorMonth string) bool {
	for _, r := range history {
		if len(r.Date) >= 7 && r.Date[:7] == priorMonth {
			return false
		}
	}
	return true
}
