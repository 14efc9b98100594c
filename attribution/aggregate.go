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

	"github.com/shopspring/decimal"
)

// ClassAggregator rolls asset contribution records up to their asset class.
// Class weights are computed from summed market values, never from summed
// asset weights.
type ClassAggregator struct {
	steps    []Step
	universe []int64
}

func NewClassAggregator(steps []Step, universe []int64) *ClassAggregator {
	return &ClassAggregator{
		steps:    steps,
		universe: universe,
	}
}

// Aggregate groups records by asset class. Records and results are in
// percentage points; classes are ordered by name.
func (agg *ClassAggregator) Aggregate(records []ContributionRecord) []ClassContribution {
	members := make(map[string][]ContributionRecord)
	for _, rec := range records {
		members[rec.AssetClass] = append(members[rec.AssetClass], rec)
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	classes := make([]ClassContribution, 0, len(names))
	for _, name := range names {
		assets := members[name]
		sort.SliceStable(assets, func(i, j int) bool { return assets[i].AssetID < assets[j].AssetID })

		class := ClassContribution{
			AssetClass: name,
			Assets:     assets,
		}
		ids := make(map[int64]bool, len(assets))
		for _, rec := range assets {
			class.Contribution += rec.Contribution
			class.AvgWeight += rec.AvgWeight
			ids[rec.AssetID] = true
		}

		class.WeightTrend, class.ReturnTrend = agg.trends(ids)
		if n := len(class.WeightTrend); n > 0 {
			class.CurrentAllocation = class.WeightTrend[n-1].Weight
		}

		classes = append(classes, class)
	}

	return classes
}

// trends builds the class weight and return series for the member set
func (agg *ClassAggregator) trends(ids map[int64]bool) ([]WeightPoint, []ReturnPoint) {
	weightTrend := make([]WeightPoint, 0, len(agg.steps))
	returnTrend := make([]ReturnPoint, 0, len(agg.steps))
	growth := 1.0

	for _, step := range agg.steps {
		total := step.Day.Total(agg.universe)
		classValue := decimal.Zero
		for _, id := range agg.universe {
			if ids[id] {
				classValue = classValue.Add(step.Day.Value(id))
			}
		}
		weight := 0.0
		if total.IsPositive() {
			weight = classValue.Div(total).InexactFloat64()
		}

		daily := 0.0
		if b := step.Boundary; b != nil {
			var weighted, classWeight float64
			for _, id := range agg.universe {
				if !ids[id] {
					continue
				}
				classWeight += b.Weights[id]
				weighted += b.Term(id)
			}
			if classWeight > 0 {
				daily = weighted / classWeight
			}
		}
		growth *= 1 + daily

		weightTrend = append(weightTrend, WeightPoint{Date: step.Day.Date, Weight: weight * 100})
		returnTrend = append(returnTrend, ReturnPoint{
			Date:       step.Day.Date,
			Cumulative: (growth - 1) * 100,
			Daily:      daily * 100,
		})
	}

	return weightTrend, returnTrend
}
