package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of travel dates in search params and source markup
const DateLayout = "2006-01-02"

const minuteMillis = int64(60 * 1000)
const dayMillis = 24 * 60 * minuteMillis

var (
	clockRegex  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	offsetRegex = regexp.MustCompile(`^(?:UTC|GMT)?\s*([+-])?(\d{1,2})(?::?(\d{2}))?$`)
)

// ParseClock extracts hour and minute from strings like "06:05" or "23:50(Sun)"
func ParseClock(value string) (int, int, error) {
	matches := clockRegex.FindStringSubmatch(value)
	if len(matches) < 3 {
		return 0, 0, fmt.Errorf("invalid time format: %s", value)
	}
	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time: %s", value)
	}
	return hour, minute, nil
}

// WallClockMillis encodes a local date and clock time as epoch milliseconds,
// treating the wall clock as if it were UTC.
func WallClockMillis(date, clock string) (int64, error) {
	day, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return 0, err
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute).UnixMilli(), nil
}

// SpanMinutes returns the minutes between two wall clock instants.
// A negative span is treated as an overnight flight and shifted by a day.
func SpanMinutes(departureMs, arrivalMs int64) int {
	span := arrivalMs - departureMs
	for span < 0 {
		span += dayMillis
	}
	return int(span / minuteMillis)
}

// DurationMinutes computes the duration between two clock times on the same
// nominal day, e.g. 23:50 -> 00:20 is 30 minutes.
func DurationMinutes(departure, arrival string) (int, error) {
	dh, dm, err := ParseClock(departure)
	if err != nil {
		return 0, err
	}
	ah, am, err := ParseClock(arrival)
	if err != nil {
		return 0, err
	}
	dep := int64(dh*60+dm) * minuteMillis
	arr := int64(ah*60+am) * minuteMillis
	return SpanMinutes(dep, arr), nil
}

// ParseUTCOffset converts offsets like "UTC+2", "UTC-5", "GMT+5:30" or "UTC" to minutes
func ParseUTCOffset(gmtTz string) (int, error) {
	value := strings.ToUpper(strings.TrimSpace(gmtTz))
	if value == "UTC" || value == "GMT" || value == "Z" {
		return 0, nil
	}

	matches := offsetRegex.FindStringSubmatch(value)
	if matches == nil {
		return 0, fmt.Errorf("invalid utc offset: %q", gmtTz)
	}

	hours, _ := strconv.Atoi(matches[2])
	minutes := 0
	if matches[3] != "" {
		minutes, _ = strconv.Atoi(matches[3])
	}
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("utc offset out of range: %q", gmtTz)
	}

	total := hours*60 + minutes
	if matches[1] == "-" {
		total = -total
	}
	return total, nil
}

// ToUTC shifts a wall clock timestamp to true UTC given the local offset in minutes
func ToUTC(localMs int64, offsetMinutes int) int64 {
	return localMs - int64(offsetMinutes)*minuteMillis
}

// ArrivalUTC returns the true UTC arrival of a flight that departs at
// departureUTC and lands at arrivalLocal on a clock offset by arrivalOffsetMinutes.
// An arrival before the departure lands on a later day.
func ArrivalUTC(departureUTC, arrivalLocal int64, arrivalOffsetMinutes int) int64 {
	arrival := ToUTC(arrivalLocal, arrivalOffsetMinutes)
	return departureUTC + int64(SpanMinutes(departureUTC, arrival))*minuteMillis
}

// LocalDate formats the date part of a wall clock timestamp
func LocalDate(localMs int64) string {
	return time.UnixMilli(localMs).UTC().Format(DateLayout)
}
