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
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultTolerance is the largest reconciliation delta, in percentage points,
// of a valid report
const DefaultTolerance = 1e-4

// Reconciliation compares the sum of asset contributions with the
// independently compounded portfolio TWR
type Reconciliation struct {
	Delta     float64 `json:"delta"`
	Tolerance float64 `json:"tolerance"`
	IsValid   bool    `json:"is_valid"`
	Linking   Linking `json:"linking"`
}

// Reconcile checks records against twr; both are in percentage points
func Reconcile(records []ContributionRecord, twr, tolerance float64, linking Linking) Reconciliation {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	contributions := make([]float64, len(records))
	for idx, rec := range records {
		contributions[idx] = rec.Contribution
	}

	delta := math.Abs(floats.Sum(contributions) - twr)
	return Reconciliation{
		Delta:     delta,
		Tolerance: tolerance,
		IsValid:   delta < tolerance,
		Linking:   linking,
	}
}
