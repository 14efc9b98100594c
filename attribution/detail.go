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

	"github.com/shopspring/decimal"
)

// PricePoint is a close and its return relative to the first close of the
// window
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Return float64         `json:"return"`
}

// AssetDetail is the drill-down view of one asset over a report's window
type AssetDetail struct {
	AssetID           int64               `json:"asset_id"`
	Ticker            string              `json:"ticker"`
	Name              string              `json:"name"`
	AssetClass        string              `json:"asset_class"`
	Region            string              `json:"region"`
	CurrentAllocation float64             `json:"current_allocation"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	PriceReturn       float64             `json:"price_return"`
	Contribution      float64             `json:"twr_contribution"`
	PricePerformance  []PricePoint        `json:"price_performance"`
}

// Detail builds the drill-down of assetID. Allocation and contribution come
// from the report; the price series is normalized to the first positive close
// in the window.
func Detail(report *Report, in *Input, assetID int64) (*AssetDetail, error) {
	rec, ok := report.Asset(assetID)
	if !ok {
		return nil, ErrAssetNotFound
	}

	detail := &AssetDetail{
		AssetID:           rec.AssetID,
		Ticker:            rec.Ticker,
		Name:              rec.Name,
		AssetClass:        rec.AssetClass,
		Region:            rec.Region,
		CurrentAllocation: rec.CurrentAllocation,
		CurrentPrice:      rec.CurrentPrice,
		Contribution:      rec.Contribution,
		PricePerformance:  make([]PricePoint, 0),
	}

	var base decimal.Decimal
	for _, obs := range NewPriceHistory(in.Prices)[assetID] {
		if obs.Date.Before(report.StartDate) || obs.Date.After(report.EndDate) {
			continue
		}
		if base.IsZero() {
			if !obs.Close.IsPositive() {
				continue
			}
			base = obs.Close
		}
		detail.PricePerformance = append(detail.PricePerformance, PricePoint{
			Date:   obs.Date,
			Close:  obs.Close,
			Return: priceReturn(obs.Close, base),
		})
	}

	if n := len(detail.PricePerformance); n > 0 {
		detail.PriceReturn = detail.PricePerformance[n-1].Return
	}

	return detail, nil
}
