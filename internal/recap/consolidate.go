package recap

import (
	"fmt"
	"sort"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// recentReadingLimit is how many of the newest unrecapped readings are shown
// individually before hourly bucketing kicks in.
const recentReadingLimit = 4

// Consolidate produces the display-only view of not-yet-recapped readings:
// the newest few readings verbatim, everything older bucketed per clock hour
// in the given timezone. Output is newest first. Nothing here is persisted;
// the view is recomputed on every timeline read so an unrecapped "today" with
// hundreds of readings stays legible.
func Consolidate(readings []model.Reading, loc *time.Location) []model.TimelineEntry {
	if len(readings) == 0 {
		return nil
	}

	split := len(readings) - recentReadingLimit
	if split < 0 {
		split = 0
	}
	recent, older := readings[split:], readings[:split]

	entries := make([]model.TimelineEntry, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		entries = append(entries, model.ReadingEntry{Reading: recent[i]})
	}

	for _, summary := range bucketByHour(older, loc) {
		entries = append(entries, model.HourlyEntry{Summary: summary})
	}
	return entries
}

// bucketByHour groups ascending readings into per-hour summaries, returned
// newest first.
func bucketByHour(readings []model.Reading, loc *time.Location) []model.HourlySummary {
	if len(readings) == 0 {
		return nil
	}

	buckets := make(map[time.Time][]model.Reading)
	for _, r := range readings {
		t := r.RecordedAt.In(loc)
		hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
		buckets[hour] = append(buckets[hour], r)
	}

	hours := make([]time.Time, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].After(hours[j]) })

	summaries := make([]model.HourlySummary, 0, len(hours))
	for _, hour := range hours {
		group := buckets[hour]

		s := model.HourlySummary{
			HourStart:    hour,
			Label:        hourLabel(hour.Hour()),
			StartGravity: group[0].Gravity,
			EndGravity:   group[len(group)-1].Gravity,
			ReadingCount: len(group),
		}

		var temps []float64
		for _, r := range group {
			if r.Temperature != nil {
				temps = append(temps, *r.Temperature)
				if s.TempUnit == "" {
					s.TempUnit = r.TempUnit
				}
			}
		}
		if len(temps) > 0 {
			avg := mean(temps)
			s.AvgTemperature = &avg
		}

		summaries = append(summaries, s)
	}
	return summaries
}

// hourLabel renders a clock-hour range like "11pm – 12am".
func hourLabel(hour int) string {
	return fmt.Sprintf("%s – %s", clockHour(hour), clockHour((hour+1)%24))
}

func clockHour(hour int) string {
	switch {
	case hour == 0:
		return "12am"
	case hour < 12:
		return fmt.Sprintf("%dam", hour)
	case hour == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", hour-12)
	}
}
