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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/shopspring/decimal"
)

var _ = Describe("DailyReturns", func() {
	var (
		prev     *attribution.Day
		curr     *attribution.Day
		universe []int64
	)

	BeforeEach(func() {
		universe = []int64{1, 2}
		prev = attribution.NewDay(day(0))
		curr = attribution.NewDay(day(1))
	})

	Context("with two priced assets", func() {
		BeforeEach(func() {
			prev.Values[1] = decimal.NewFromInt(60)
			prev.Values[2] = decimal.NewFromInt(40)
			prev.Quotes[1] = attribution.Price(decimal.NewFromInt(100))
			prev.Quotes[2] = attribution.Price(decimal.NewFromInt(50))
			curr.Values[1] = decimal.NewFromInt(66)
			curr.Values[2] = decimal.NewFromInt(36)
			curr.Quotes[1] = attribution.Price(decimal.NewFromInt(110))
			curr.Quotes[2] = attribution.Price(decimal.NewFromInt(45))
		})

		It("should weight by prior market value", func() {
			b := attribution.DailyReturns(prev, curr, universe)
			Expect(b.Weights[1]).Should(BeNumerically("~", 0.6, 1e-12))
			Expect(b.Weights[2]).Should(BeNumerically("~", 0.4, 1e-12))
		})

		It("should compute simple asset returns", func() {
			b := attribution.DailyReturns(prev, curr, universe)
			Expect(b.Return(1)).Should(BeNumerically("~", 0.10, 1e-12))
			Expect(b.Return(2)).Should(BeNumerically("~", -0.10, 1e-12))
		})

		It("should compute the portfolio return from t-1 weights", func() {
			b := attribution.DailyReturns(prev, curr, universe)
			Expect(b.PortfolioReturn).Should(BeNumerically("~", 0.02, 1e-12))
			Expect(b.Term(1)).Should(BeNumerically("~", 0.06, 1e-12))
			Expect(b.Term(2)).Should(BeNumerically("~", -0.04, 1e-12))
			Expect(b.Missing).To(BeEmpty())
		})

		It("should record the boundary dates", func() {
			b := attribution.DailyReturns(prev, curr, universe)
			Expect(b.Prev).To(Equal(day(0)))
			Expect(b.Date).To(Equal(day(1)))
		})
	})

	Context("with a missing price", func() {
		BeforeEach(func() {
			prev.Values[1] = decimal.NewFromInt(60)
			prev.Values[2] = decimal.NewFromInt(40)
			prev.Quotes[1] = attribution.Price(decimal.NewFromInt(100))
			prev.Quotes[2] = attribution.Price(decimal.NewFromInt(50))
			curr.Quotes[1] = attribution.Price(decimal.NewFromInt(110))
		})

		It("should treat the day's return as zero and flag the asset", func() {
			b := attribution.DailyReturns(prev, curr, universe)
			Expect(b.Return(2)).To(Equal(0.0))
			Expect(b.Term(2)).To(Equal(0.0))
			Expect(b.Missing).To(Equal([]int64{2}))
			Expect(b.PortfolioReturn).Should(BeNumerically("~", 0.06, 1e-12))
		})
	})

	Context("with a non-positive prior price", func() {
		It("should not define a return", func() {
			prev.Values[1] = decimal.NewFromInt(10)
			prev.Quotes[1] = attribution.Price(decimal.Zero)
			curr.Quotes[1] = attribution.Price(decimal.NewFromInt(5))
			b := attribution.DailyReturns(prev, curr, []int64{1})
			Expect(b.PortfolioReturn).To(Equal(0.0))
			Expect(b.Missing).To(Equal([]int64{1}))
		})
	})

	Context("with an empty universe at t-1", func() {
		It("should have a zero portfolio return", func() {
			curr.Values[1] = decimal.NewFromInt(100)
			curr.Quotes[1] = attribution.Price(decimal.NewFromInt(10))
			b := attribution.DailyReturns(prev, curr, universe)
			Expect(b.PortfolioReturn).To(Equal(0.0))
			Expect(b.Weights[1]).To(Equal(0.0))
			Expect(b.Missing).To(BeEmpty())
		})
	})
})

var _ = Describe("Quote", func() {
	It("should be missing by default", func() {
		var q attribution.Quote
		Expect(q.IsMissing()).To(BeTrue())
		Expect(attribution.Missing.IsMissing()).To(BeTrue())
		Expect(q.NullDecimal().Valid).To(BeFalse())
	})

	It("should carry an observed close", func() {
		q := attribution.Price(decimal.NewFromFloat(12.5))
		c, ok := q.Close()
		Expect(ok).To(BeTrue())
		Expect(c.Equal(decimal.NewFromFloat(12.5))).To(BeTrue())
	})

	It("should only return when both sides are present", func() {
		_, ok := attribution.Price(decimal.NewFromInt(2)).Return(attribution.Missing)
		Expect(ok).To(BeFalse())
		r, ok := attribution.Price(decimal.NewFromInt(3)).Return(attribution.Price(decimal.NewFromInt(2)))
		Expect(ok).To(BeTrue())
		Expect(r).Should(BeNumerically("~", 0.5, 1e-12))
	})
})
