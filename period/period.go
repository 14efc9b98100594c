// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package period turns the period vocabulary accepted by the API into a
// concrete date range
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownPeriod = errors.New("unknown period")
	ErrInvalidRange  = errors.New("start must not be after end")
	ErrNoData        = errors.New("portfolio has no snapshots")
)

// Period enumerates every way a caller can name an analysis window
type Period int

const (
	All Period = iota
	Inception
	YTD
	OneWeek
	OneMonth
	ThreeMonths
	SixMonths
	OneYear
	Week
	Month
	Custom
)

var names = map[Period]string{
	All:         "all",
	Inception:   "inception",
	YTD:         "ytd",
	OneWeek:     "1w",
	OneMonth:    "1m",
	ThreeMonths: "3m",
	SixMonths:   "6m",
	OneYear:     "1y",
	Week:        "week",
	Month:       "month",
	Custom:      "custom",
}

// lookback is the number of days a rolling window reaches back from the last
// snapshot
var lookback = map[Period]int{
	OneWeek:     7,
	OneMonth:    30,
	ThreeMonths: 90,
	SixMonths:   180,
	OneYear:     365,
}

var (
	weekPattern  = regexp.MustCompile(`^(\d{4})-[Ww](\d{1,2})$`)
	monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
)

func (p Period) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return fmt.Sprintf("period(%d)", int(p))
}

// Spec is a period plus the explicit dates that Week, Month and Custom need
type Spec struct {
	Period Period
	Start  time.Time
	End    time.Time
}

// Range is an inclusive date range
type Range struct {
	Start time.Time
	End   time.Time
}

// Bounds are the first and last snapshot dates of a portfolio
type Bounds struct {
	First time.Time
	Last  time.Time
}

// Parse accepts all, inception, ytd, 1w, 1m, 3m, 6m, 1y, a week such as
// 2024-W23 or a month such as 2024-03. An empty string is All.
func Parse(s string) (Spec, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Spec{Period: All}, nil
	}

	for p, name := range names {
		if name == s && p != Week && p != Month && p != Custom {
			return Spec{Period: p}, nil
		}
	}

	if m := weekPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		return WeekOf(year, week)
	}

	if m := monthPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return MonthOf(year, time.Month(month))
	}

	return Spec{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// WeekOf returns ISO week n of year, Monday through Sunday. Week 1 is the
// week containing January 4th so it may start in December.
func WeekOf(year, week int) (Spec, error) {
	if week < 1 || week > 53 {
		return Spec{}, fmt.Errorf("%w: week %d", ErrUnknownPeriod, week)
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, 7*(week-1)-sinceMonday)
	return Spec{Period: Week, Start: start, End: start.AddDate(0, 0, 6)}, nil
}

// MonthOf returns the first through the last day of month
func MonthOf(year int, month time.Month) (Spec, error) {
	if month < time.January || month > time.December {
		return Spec{}, fmt.Errorf("%w: month %d", ErrUnknownPeriod, month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Spec{Period: Month, Start: start, End: start.AddDate(0, 1, -1)}, nil
}

// Between is a custom range
func Between(start, end time.Time) (Spec, error) {
	start = truncate(start)
	end = truncate(end)
	if start.After(end) {
		return Spec{}, ErrInvalidRange
	}
	return Spec{Period: Custom, Start: start, End: end}, nil
}

// Resolve converts s into a date range using the portfolio's snapshot
// bounds. Relative periods are measured from the last snapshot rather than the
// wall clock and never reach back before the first snapshot.
func (s Spec) Resolve(b Bounds) (Range, error) {
	first := truncate(b.First)
	last := truncate(b.Last)
	if first.IsZero() || last.IsZero() {
		return Range{}, ErrNoData
	}

	var r Range
	switch s.Period {
	case All, Inception:
		r = Range{Start: first, End: last}
	case YTD:
		r = Range{Start: time.Date(last.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), End: last}
	case OneWeek, OneMonth, ThreeMonths, SixMonths, OneYear:
		r = Range{Start: last.AddDate(0, 0, -lookback[s.Period]), End: last}
	case Week, Month, Custom:
		r = Range{Start: truncate(s.Start), End: truncate(s.End)}
	default:
		return Range{}, fmt.Errorf("%w: %s", ErrUnknownPeriod, s.Period)
	}

	if r.Start.Before(first) {
		r.Start = first
	}
	if r.Start.After(r.End) {
		return Range{}, ErrInvalidRange
	}

	return r, nil
}

func (s Spec) String() string {
	switch s.Period {
	case Week, Month, Custom:
		return fmt.Sprintf("%s:%s..%s", s.Period, s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
	default:
		return s.Period.String()
	}
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
