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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ContributionRecord is the attribution of a single asset. Every percentage
// is expressed in percentage points.
type ContributionRecord struct {
	AssetID           int64               `json:"asset_id"`
	Ticker            string              `json:"ticker"`
	Name              string              `json:"name"`
	AssetClass        string              `json:"asset_class"`
	Region            string              `json:"region"`
	AvgWeight         float64             `json:"avg_weight"`
	PeriodReturn      float64             `json:"period_return"`
	Contribution      float64             `json:"contribution"`
	CurrentAllocation float64             `json:"current_allocation"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	EntryDate         *time.Time          `json:"entry_date,omitempty"`
	ExitDate          *time.Time          `json:"exit_date,omitempty"`
	WeightTrend       []WeightPoint       `json:"weight_trend"`
	ReturnTrend       []ReturnPoint       `json:"return_trend"`
}

// ClassContribution is the roll-up of every asset sharing an asset class
type ClassContribution struct {
	AssetClass        string               `json:"asset_class"`
	AvgWeight         float64              `json:"avg_weight"`
	Contribution      float64              `json:"contribution"`
	CurrentAllocation float64              `json:"current_allocation"`
	WeightTrend       []WeightPoint        `json:"weight_trend"`
	ReturnTrend       []ReturnPoint        `json:"return_trend"`
	Assets            []ContributionRecord `json:"assets"`
}

type WarningCode string

const (
	WarnMissingPrice WarningCode = "missing_price"
)

// Warning is a non-fatal data problem found while computing a report
type Warning struct {
	Code    WarningCode `json:"code"`
	AssetID int64       `json:"asset_id"`
	Date    time.Time   `json:"date"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: asset %d on %s", w.Code, w.AssetID, w.Date.Format("2006-01-02"))
}

// Report is the attribution of a portfolio over a date range
type Report struct {
	PortfolioID     int64                `json:"portfolio_id"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	AnchorDate      *time.Time           `json:"anchor_date,omitempty"`
	Filter          Filter               `json:"filter"`
	TotalTWR        float64              `json:"total_twr"`
	DailyReturns    []DailyReturn        `json:"daily_returns"`
	Assets          []ContributionRecord `json:"assets"`
	Classes         []ClassContribution  `json:"classes"`
	TopContributors []ContributionRecord `json:"top_contributors"`
	TopDetractors   []ContributionRecord `json:"top_detractors"`
	Reconciliation  Reconciliation       `json:"reconciliation"`
	Warnings        []Warning            `json:"warnings,omitempty"`
}

// Asset returns the record for assetID
func (r *Report) Asset(assetID int64) (ContributionRecord, bool) {
	for _, rec := range r.Assets {
		if rec.AssetID == assetID {
			return rec, true
		}
	}
	return ContributionRecord{}, false
}

func percentWeights(points []WeightPoint) []WeightPoint {
	out := make([]WeightPoint, len(points))
	for idx, pt := range points {
		out[idx] = WeightPoint{Date: pt.Date, Weight: pt.Weight * 100}
	}
	return out
}

func percentReturns(points []ReturnPoint) []ReturnPoint {
	out := make([]ReturnPoint, len(points))
	for idx, pt := range points {
		out[idx] = ReturnPoint{Date: pt.Date, Cumulative: pt.Cumulative * 100, Daily: pt.Daily * 100}
	}
	return out
}
