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
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type assetTotals struct {
	terms        []float64
	priorWeights []float64
	growth       float64
	weightTrend  []WeightPoint
	returnTrend  []ReturnPoint
}

// PeriodAccumulator walks the steps of a period in date order, compounding the
// portfolio return and collecting per-asset contribution terms and trends.
// All values are fractions.
type PeriodAccumulator struct {
	linking  Linking
	universe []int64
	growth   float64
	daily    []DailyReturn
	assets   map[int64]*assetTotals
}

func NewPeriodAccumulator(universe []int64, linking Linking) *PeriodAccumulator {
	acc := &PeriodAccumulator{
		linking:  linking,
		universe: universe,
		growth:   1,
		assets:   make(map[int64]*assetTotals, len(universe)),
	}
	for _, id := range universe {
		acc.assets[id] = &assetTotals{growth: 1}
	}
	return acc
}

// Add records one reported day. A step without a boundary opens the period
// with a zero return.
func (acc *PeriodAccumulator) Add(step Step) {
	var portfolioReturn float64
	if step.Boundary != nil {
		portfolioReturn = step.Boundary.PortfolioReturn
	}

	weights := step.Day.Weights(acc.universe)
	for _, id := range acc.universe {
		totals := acc.assets[id]
		daily := 0.0
		if b := step.Boundary; b != nil {
			if w := b.Weights[id]; w > 0 {
				totals.priorWeights = append(totals.priorWeights, w)
				daily = b.Return(id)
				if term := b.Term(id); term != 0 {
					if acc.linking == LinkCompounded {
						term *= acc.growth
					}
					totals.terms = append(totals.terms, term)
				}
			}
		}
		totals.growth *= 1 + daily
		totals.weightTrend = append(totals.weightTrend, WeightPoint{Date: step.Day.Date, Weight: weights[id]})
		totals.returnTrend = append(totals.returnTrend, ReturnPoint{
			Date:       step.Day.Date,
			Cumulative: totals.growth - 1,
			Daily:      daily,
		})
	}

	acc.growth *= 1 + portfolioReturn
	acc.daily = append(acc.daily, DailyReturn{
		Date:   step.Day.Date,
		Return: portfolioReturn,
		Value:  step.Day.Total(acc.universe).InexactFloat64(),
	})
}

// TWR is the compounded portfolio return over every step added so far
func (acc *PeriodAccumulator) TWR() float64 {
	return acc.growth - 1
}

// Contribution is the sum of the asset's daily terms; exactly 0 for an asset
// that never carried weight
func (acc *PeriodAccumulator) Contribution(assetID int64) float64 {
	totals, ok := acc.assets[assetID]
	if !ok {
		return 0
	}
	return floats.Sum(totals.terms)
}

// AvgWeight is the mean prior weight over boundaries where the asset was held
func (acc *PeriodAccumulator) AvgWeight(assetID int64) float64 {
	totals, ok := acc.assets[assetID]
	if !ok || len(totals.priorWeights) == 0 {
		return 0
	}
	return stat.Mean(totals.priorWeights, nil)
}

func (acc *PeriodAccumulator) WeightTrend(assetID int64) []WeightPoint {
	if totals, ok := acc.assets[assetID]; ok {
		return totals.weightTrend
	}
	return nil
}

func (acc *PeriodAccumulator) ReturnTrend(assetID int64) []ReturnPoint {
	if totals, ok := acc.assets[assetID]; ok {
		return totals.returnTrend
	}
	return nil
}

func (acc *PeriodAccumulator) DailyReturns() []DailyReturn {
	return acc.daily
}

// WeightPoint is an asset or class weight at the close of a day
type WeightPoint struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// ReturnPoint is the daily and compounded return of an asset or class
type ReturnPoint struct {
	Date       time.Time `json:"date"`
	Cumulative float64   `json:"cumulative_twr"`
	Daily      float64   `json:"daily_twr"`
}

// DailyReturn is the portfolio return realized on a day and its closing value
type DailyReturn struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"daily_return"`
	Value  float64   `json:"portfolio_value"`
}
