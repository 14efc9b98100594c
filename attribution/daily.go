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

package attribution

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Day is the state of the portfolio on one snapshot date: the market value of
// every held asset and the quote of every asset in the universe.
type Day struct {
	Date   time.Time
	Values map[int64]decimal.Decimal
	Quotes map[int64]Quote
}

// NewDay creates an empty day for date
func NewDay(date time.Time) *Day {
	return &Day{
		Date:   normalizeDate(date),
		Values: make(map[int64]decimal.Decimal),
		Quotes: make(map[int64]Quote),
	}
}

// Value returns the market value of assetID, zero when not held
func (d *Day) Value(assetID int64) decimal.Decimal {
	if v, ok := d.Values[assetID]; ok {
		return v
	}
	return decimal.Zero
}

// Quote returns the close of assetID on this day or Missing
func (d *Day) Quote(assetID int64) Quote {
	if q, ok := d.Quotes[assetID]; ok {
		return q
	}
	return Missing
}

// Total is the portfolio market value across universe
func (d *Day) Total(universe []int64) decimal.Decimal {
	total := decimal.Zero
	for _, id := range universe {
		total = total.Add(d.Value(id))
	}
	return total
}

// Weights returns mv/Σmv for every asset in universe; all weights are 0 when
// the portfolio holds nothing
func (d *Day) Weights(universe []int64) map[int64]float64 {
	weights := make(map[int64]float64, len(universe))
	total := d.Total(universe)
	for _, id := range universe {
		if total.IsPositive() {
			weights[id] = d.Value(id).Div(total).InexactFloat64()
		} else {
			weights[id] = 0
		}
	}
	return weights
}

// Boundary is the transition from one snapshot date to the next
type Boundary struct {
	Prev time.Time
	Date time.Time

	// Weights are the t-1 weights used to attribute the day's return
	Weights map[int64]float64

	// Returns holds the asset returns that are defined over the boundary
	Returns map[int64]float64

	PortfolioReturn float64

	// Missing lists assets that carried weight into the day but have no
	// usable price on one side of the boundary
	Missing []int64
}

// Return gives the asset return over the boundary; undefined returns count as 0
func (b *Boundary) Return(assetID int64) float64 {
	return b.Returns[assetID]
}

// Term is the asset's weight x return contribution for the day
func (b *Boundary) Term(assetID int64) float64 {
	w := b.Weights[assetID]
	if w == 0 {
		return 0
	}
	return w * b.Returns[assetID]
}

// DailyReturns computes asset and portfolio returns over the boundary from
// prev to curr. universe must be sorted so the portfolio sum is accumulated in
// a stable order.
func DailyReturns(prev, curr *Day, universe []int64) *Boundary {
	b := &Boundary{
		Prev:    prev.Date,
		Date:    curr.Date,
		Weights: prev.Weights(universe),
		Returns: make(map[int64]float64, len(universe)),
	}

	for _, id := range universe {
		r, ok := curr.Quote(id).Return(prev.Quote(id))
		if ok {
			b.Returns[id] = r
		} else if b.Weights[id] > 0 {
			b.Missing = append(b.Missing, id)
		}
		if w := b.Weights[id]; w != 0 && ok {
			b.PortfolioReturn += w * r
		}
	}

	return b
}

// Step is one reported day. The opening day of a period without an anchor
// has no boundary.
type Step struct {
	Day      *Day
	Boundary *Boundary
}

// timeline is the ordered sequence of snapshot days the engine walks
type timeline struct {
	anchor   *Day
	steps    []Step
	universe []int64
}

// days returns every reported day; the anchor is not one of them
func (tl *timeline) days() []*Day {
	days := make([]*Day, len(tl.steps))
	for idx, step := range tl.steps {
		days[idx] = step.Day
	}
	return days
}

// buildTimeline groups the filtered positions into days, attaches the quotes
// observed on each snapshot date and computes every boundary
func buildTimeline(in *Input, filter Filter) (*timeline, error) {
	start := normalizeDate(in.Start)
	end := normalizeDate(in.End)
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	byDate := make(map[time.Time]*Day)
	listed := make(map[time.Time][]int64)
	for _, pos := range in.Positions {
		date := normalizeDate(pos.Date)
		if date.After(end) {
			continue
		}
		if !filter.Includes(in.Meta(pos.AssetID)) {
			continue
		}
		day, ok := byDate[date]
		if !ok {
			day = NewDay(date)
			byDate[date] = day
		}
		listed[date] = append(listed[date], pos.AssetID)
		if pos.Quantity.IsZero() || !pos.MarketValue.IsPositive() {
			continue
		}
		day.Values[pos.AssetID] = day.Value(pos.AssetID).Add(pos.MarketValue)
	}

	dates := make([]time.Time, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	// only the latest snapshot before start survives as the anchor
	firstInWindow := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(start) })
	if firstInWindow > 1 {
		dates = dates[firstInWindow-1:]
		firstInWindow = 1
	}

	if len(dates) < 2 {
		return nil, ErrInsufficientData
	}

	held := make(map[int64]bool)
	for _, date := range dates {
		for _, id := range listed[date] {
			held[id] = true
		}
	}
	universe := make([]int64, 0, len(held))
	for id := range held {
		universe = append(universe, id)
	}
	sort.Slice(universe, func(i, j int) bool { return universe[i] < universe[j] })

	closes := make(map[int64]map[time.Time]decimal.Decimal, len(universe))
	for _, obs := range in.Prices {
		if !held[obs.AssetID] {
			continue
		}
		m, ok := closes[obs.AssetID]
		if !ok {
			m = make(map[time.Time]decimal.Decimal)
			closes[obs.AssetID] = m
		}
		m[normalizeDate(obs.Date)] = obs.Close
	}

	days := make([]*Day, len(dates))
	for idx, date := range dates {
		day := byDate[date]
		for _, id := range universe {
			if c, ok := closes[id][date]; ok {
				day.Quotes[id] = Price(c)
			}
		}
		days[idx] = day
	}

	tl := &timeline{universe: universe}
	if firstInWindow == 1 {
		tl.anchor = days[0]
	} else {
		tl.steps = append(tl.steps, Step{Day: days[0]})
	}
	for idx := 1; idx < len(days); idx++ {
		tl.steps = append(tl.steps, Step{
			Day:      days[idx],
			Boundary: DailyReturns(days[idx-1], days[idx], universe),
		})
	}

	return tl, nil
}
