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


package attribution_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/shopspring/decimal"
)

var _ = Describe("Detail", func() {
	var (
		in     *attribution.Input
		report *attribution.Report
	)

	BeforeEach(func() {
		in = newInput(day(1), day(3))
		addSnapshot(in, day(0), holding{1, 1, 90}, holding{2, 1, 10})
		addSnapshot(in, day(1), holding{1, 1, 100}, holding{2, 1, 10})
		addSnapshot(in, day(2), holding{1, 1, 110}, holding{2, 1, 10})
		addSnapshot(in, day(3), holding{1, 1, 121}, holding{2, 1, 10})

		var err error
		report, err = attribution.Compute(context.Background(), in, attribution.Options{})
		Expect(err).To(BeNil())
	})

	It("should normalize prices to the first close in the window", func() {
		detail, err := attribution.Detail(report, in, 1)
		Expect(err).To(BeNil())
		Expect(detail.PricePerformance).To(HaveLen(3))
		Expect(detail.PricePerformance[0].Date).To(Equal(day(1)))
		Expect(detail.PricePerformance[0].Return).To(Equal(0.0))
		Expect(detail.PricePerformance[1].Return).Should(BeNumerically("~", 10.0, 1e-9))
		Expect(detail.PricePerformance[2].Return).Should(BeNumerically("~", 21.0, 1e-9))
		Expect(detail.PriceReturn).Should(BeNumerically("~", 21.0, 1e-9))
	})

	It("should carry the report's allocation and contribution", func() {
		detail, err := attribution.Detail(report, in, 1)
		Expect(err).To(BeNil())
		rec := mustAsset(report, 1)
		Expect(detail.Contribution).To(Equal(rec.Contribution))
		Expect(detail.CurrentAllocation).To(Equal(rec.CurrentAllocation))
		Expect(detail.CurrentPrice.Decimal.Equal(decimal.NewFromInt(121))).To(BeTrue())
		Expect(detail.Ticker).To(Equal("AAA"))
	})

	It("should fail for an asset outside the report", func() {
		_, err := attribution.Detail(report, in, 99)
		Expect(errors.Is(err, attribution.ErrAssetNotFound)).To(BeTrue())
	})
})
