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

import "sort"

// Rank splits records into contributors, best first, and detractors, worst
// first. Ties are broken by asset id. topN <= 0 keeps every record.
//
// topN truncates each list independently, so a truncated detractor list
// holds the largest losses, not the smallest.
func Rank(records []ContributionRecord, topN int) (contributors, detractors []ContributionRecord) {
	sorted := make([]ContributionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Contribution != sorted[j].Contribution {
			return sorted[i].Contribution > sorted[j].Contribution
		}
		return sorted[i].AssetID < sorted[j].AssetID
	})

	contributors = make([]ContributionRecord, 0)
	detractors = make([]ContributionRecord, 0)
	for _, rec := range sorted {
		switch {
		case rec.Contribution > 0:
			contributors = append(contributors, rec)
		case rec.Contribution < 0:
			detractors = append(detractors, rec)
		}
	}

	sort.SliceStable(detractors, func(i, j int) bool {
		if detractors[i].Contribution != detractors[j].Contribution {
			return detractors[i].Contribution < detractors[j].Contribution
		}
		return detractors[i].AssetID < detractors[j].AssetID
	})

	return truncate(contributors, topN), truncate(detractors, topN)
}

func truncate(records []ContributionRecord, n int) []ContributionRecord {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
