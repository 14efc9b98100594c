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

// Holding is the resolved holding period of one asset within the window
type Holding struct {
	Entry        *time.Time
	Exit         *time.Time
	PeriodReturn float64
	Allocation   float64
	CurrentPrice Quote
}

// PriceHistory is the sorted price series of each asset
type PriceHistory map[int64][]PriceObservation

// NewPriceHistory indexes prices by asset with every series sorted by date
func NewPriceHistory(prices []PriceObservation) PriceHistory {
	history := make(PriceHistory)
	for _, obs := range prices {
		obs.Date = normalizeDate(obs.Date)
		history[obs.AssetID] = append(history[obs.AssetID], obs)
	}
	for _, series := range history {
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
	return history
}

// FirstOnOrAfter returns the earliest quote in [from, to]
func (h PriceHistory) FirstOnOrAfter(assetID int64, from, to time.Time) Quote {
	for _, obs := range h[assetID] {
		if obs.Date.Before(from) {
			continue
		}
		if obs.Date.After(to) {
			break
		}
		return Price(obs.Close)
	}
	return Missing
}

// LastOnOrBefore returns the latest quote in [from, to]
func (h PriceHistory) LastOnOrBefore(assetID int64, from, to time.Time) Quote {
	series := h[assetID]
	for idx := len(series) - 1; idx >= 0; idx-- {
		obs := series[idx]
		if obs.Date.After(to) {
			continue
		}
		if obs.Date.Before(from) {
			break
		}
		return Price(obs.Close)
	}
	return Missing
}

// Latest returns the most recent quote on or before to
func (h PriceHistory) Latest(assetID int64, to time.Time) Quote {
	return h.LastOnOrBefore(assetID, time.Time{}, to)
}

// EntryExitResolver derives the display fields of each asset from its actual
// holding period. It never touches contribution.
type EntryExitResolver struct {
	anchor   *Day
	days     []*Day
	universe []int64
	prices   PriceHistory
}

// NewEntryExitResolver resolves holdings over days, the reported snapshots.
// anchor may be nil; it only supplies the opening close of a position
// carried into the window.
func NewEntryExitResolver(anchor *Day, days []*Day, universe []int64, prices PriceHistory) *EntryExitResolver {
	return &EntryExitResolver{
		anchor:   anchor,
		days:     days,
		universe: universe,
		prices:   prices,
	}
}

// Resolve computes the holding of assetID. Entry and exit are reported
// snapshot dates, so an asset held only on the anchor has neither. The period
// return runs from the first price at or after entry to the last price at or
// before exit; a position carried over from the anchor is measured from the
// anchor close.
func (r *EntryExitResolver) Resolve(assetID int64) Holding {
	holding := Holding{CurrentPrice: Missing}
	if len(r.days) == 0 {
		return holding
	}

	last := r.days[len(r.days)-1]
	holding.Allocation = last.Weights(r.universe)[assetID]
	holding.CurrentPrice = r.prices.Latest(assetID, last.Date)

	for _, day := range r.days {
		if !day.Value(assetID).IsPositive() {
			continue
		}
		date := day.Date
		if holding.Entry == nil {
			entry := date
			holding.Entry = &entry
		}
		exit := date
		holding.Exit = &exit
	}

	if holding.Entry == nil {
		return holding
	}

	base := *holding.Entry
	if r.anchor != nil && r.anchor.Value(assetID).IsPositive() && base.Equal(r.days[0].Date) {
		base = r.anchor.Date
	}

	entryPrice := r.prices.FirstOnOrAfter(assetID, base, *holding.Exit)
	exitPrice := r.prices.LastOnOrBefore(assetID, base, *holding.Exit)
	if ret, ok := exitPrice.Return(entryPrice); ok {
		holding.PeriodReturn = ret
	}

	return holding
}

// priceReturn is close/base - 1 in percentage points
func priceReturn(close, base decimal.Decimal) float64 {
	return close.Div(base).Sub(one).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
