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
	"math/rand"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/rs/zerolog/log"
)

var _ = Describe("Compute", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = log.Logger.WithContext(context.Background())
	})

	Context("with two assets over one day boundary", func() {
		var report *attribution.Report

		BeforeEach(func() {
			var err error
			report, err = attribution.Compute(ctx, twoAssetScenario(day(1)), attribution.Options{})
			Expect(err).To(BeNil())
		})

		It("should use the day before start as the anchor", func() {
			Expect(report.AnchorDate).ToNot(BeNil())
			Expect(*report.AnchorDate).To(Equal(day(0)))
			Expect(report.DailyReturns).To(HaveLen(1))
			Expect(report.DailyReturns[0].Date).To(Equal(day(1)))
			Expect(report.DailyReturns[0].Return).Should(BeNumerically("~", 2.0, 1e-9))
			Expect(report.DailyReturns[0].Value).Should(BeNumerically("~", 102.0, 1e-9))
		})

		It("should report contributions in percentage points", func() {
			Expect(mustAsset(report, 1).Contribution).Should(BeNumerically("~", 6.0, 1e-9))
			Expect(mustAsset(report, 2).Contribution).Should(BeNumerically("~", -4.0, 1e-9))
		})

		It("should compound the portfolio TWR", func() {
			Expect(report.TotalTWR).Should(BeNumerically("~", 2.0, 1e-9))
		})

		It("should reconcile", func() {
			Expect(report.Reconciliation.Delta).Should(BeNumerically("<", 1e-9))
			Expect(report.Reconciliation.IsValid).To(BeTrue())
			Expect(report.Reconciliation.Tolerance).To(Equal(attribution.DefaultTolerance))
			Expect(report.Reconciliation.Linking).To(Equal(attribution.LinkArithmetic))
		})

		It("should report holding period returns and weights", func() {
			a := mustAsset(report, 1)
			Expect(a.PeriodReturn).Should(BeNumerically("~", 10.0, 1e-9))
			Expect(a.AvgWeight).Should(BeNumerically("~", 60.0, 1e-9))
			Expect(a.CurrentAllocation).Should(BeNumerically("~", 66.0/102.0*100, 1e-9))
			Expect(a.CurrentPrice.Valid).To(BeTrue())
			Expect(a.CurrentPrice.Decimal.String()).To(Equal("110"))
			Expect(a.Ticker).To(Equal("AAA"))
			Expect(a.AssetClass).To(Equal("Equity"))
			Expect(*a.EntryDate).To(Equal(day(1)))
			Expect(*a.ExitDate).To(Equal(day(1)))
		})

		It("should rank contributors and detractors", func() {
			Expect(report.TopContributors).To(HaveLen(1))
			Expect(report.TopContributors[0].AssetID).To(Equal(int64(1)))
			Expect(report.TopDetractors).To(HaveLen(1))
			Expect(report.TopDetractors[0].AssetID).To(Equal(int64(2)))
		})

		It("should roll both assets into one class", func() {
			Expect(report.Classes).To(HaveLen(1))
			Expect(report.Classes[0].AssetClass).To(Equal("Equity"))
			Expect(report.Classes[0].Contribution).Should(BeNumerically("~", 2.0, 1e-9))
			Expect(report.Classes[0].CurrentAllocation).Should(BeNumerically("~", 100.0, 1e-9))
		})
	})

	Context("without a snapshot before start", func() {
		It("should open the period with a zero return on the first day", func() {
			report, err := attribution.Compute(ctx, twoAssetScenario(day(0)), attribution.Options{})
			Expect(err).To(BeNil())
			Expect(report.AnchorDate).To(BeNil())
			Expect(report.DailyReturns).To(HaveLen(2))
			Expect(report.DailyReturns[0].Return).To(Equal(0.0))
			Expect(report.DailyReturns[1].Return).Should(BeNumerically("~", 2.0, 1e-9))
			Expect(report.TotalTWR).Should(BeNumerically("~", 2.0, 1e-9))

			a := mustAsset(report, 1)
			Expect(a.WeightTrend).To(HaveLen(2))
			Expect(a.WeightTrend[0].Weight).Should(BeNumerically("~", 60.0, 1e-9))
			Expect(a.ReturnTrend[0].Daily).To(Equal(0.0))
			Expect(a.ReturnTrend[1].Cumulative).Should(BeNumerically("~", 10.0, 1e-9))
		})
	})

	Context("with several snapshots before start", func() {
		It("should only keep the latest as the anchor", func() {
			in := newInput(day(3), day(4))
			addSnapshot(in, day(0), holding{1, 1, 10})
			addSnapshot(in, day(1), holding{1, 1, 20})
			addSnapshot(in, day(2), holding{1, 1, 40})
			addSnapshot(in, day(4), holding{1, 1, 44})

			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			Expect(*report.AnchorDate).To(Equal(day(2)))
			Expect(report.TotalTWR).Should(BeNumerically("~", 10.0, 1e-9))
			Expect(mustAsset(report, 1).PeriodReturn).Should(BeNumerically("~", 10.0, 1e-9))
		})
	})

	Context("with snapshots after end", func() {
		It("should ignore them", func() {
			in := twoAssetScenario(day(1))
			addSnapshot(in, day(2), holding{1, 0.6, 200}, holding{2, 0.8, 10})
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			Expect(report.TotalTWR).Should(BeNumerically("~", 2.0, 1e-9))
		})
	})

	Context("with insufficient data", func() {
		It("should fail with a single snapshot date", func() {
			in := newInput(day(0), day(5))
			addSnapshot(in, day(2), holding{1, 1, 10})
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(errors.Is(err, attribution.ErrInsufficientData)).To(BeTrue())
			Expect(report).To(BeNil())
		})

		It("should fail when only the anchor precedes the window", func() {
			in := newInput(day(3), day(5))
			addSnapshot(in, day(0), holding{1, 1, 10})
			addSnapshot(in, day(1), holding{1, 1, 11})
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(errors.Is(err, attribution.ErrInsufficientData)).To(BeTrue())
			Expect(report).To(BeNil())
		})

		It("should fail without input", func() {
			_, err := attribution.Compute(ctx, nil, attribution.Options{})
			Expect(errors.Is(err, attribution.ErrInsufficientData)).To(BeTrue())
		})

		It("should reject a start after end", func() {
			_, err := attribution.Compute(ctx, newInput(day(5), day(1)), attribution.Options{})
			Expect(errors.Is(err, attribution.ErrInvalidDateRange)).To(BeTrue())
		})
	})

	Context("with an asset that is never held", func() {
		It("should have exactly zero contribution and average weight", func() {
			in := newInput(day(0), day(3))
			for n := 0; n < 4; n++ {
				addSnapshot(in, day(n), holding{1, 10, 100 + float64(n)}, holding{3, 0, 20 + float64(n)})
			}
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			c := mustAsset(report, 3)
			Expect(c.Contribution).To(Equal(0.0))
			Expect(c.AvgWeight).To(Equal(0.0))
			Expect(c.CurrentAllocation).To(Equal(0.0))
			Expect(c.PeriodReturn).To(Equal(0.0))
			Expect(c.EntryDate).To(BeNil())
			Expect(c.ExitDate).To(BeNil())
		})
	})

	Context("with an asset bought mid-period", func() {
		var report *attribution.Report

		BeforeEach(func() {
			in := newInput(day(0), day(9))
			for n := 0; n < 10; n++ {
				a := holding{1, 10, 100 + float64(n)}
				b := holding{2, 0, 10 + float64(n)}
				if n >= 3 {
					b.qty = 5
				}
				addSnapshot(in, day(n), a, b)
			}
			var err error
			report, err = attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
		})

		It("should measure the period return from the entry price", func() {
			b := mustAsset(report, 2)
			Expect(*b.EntryDate).To(Equal(day(3)))
			Expect(*b.ExitDate).To(Equal(day(9)))
			Expect(b.PeriodReturn).Should(BeNumerically("~", (19.0/13.0-1)*100, 1e-9))
		})

		It("should only accrue contribution while held", func() {
			b := mustAsset(report, 2)
			Expect(b.Contribution).Should(BeNumerically(">", 0))
			Expect(b.ReturnTrend[3].Daily).To(Equal(0.0))
			Expect(b.ReturnTrend[4].Daily).Should(BeNumerically("~", (14.0/13.0-1)*100, 1e-9))
		})
	})

	Context("with an asset sold before the end", func() {
		It("should have no allocation but keep its contribution", func() {
			in := newInput(day(0), day(6))
			for n := 0; n < 7; n++ {
				a := holding{1, 10, 100}
				b := holding{2, 10, 50 + 5*float64(n)}
				if n >= 4 {
					b.qty = 0
				}
				addSnapshot(in, day(n), a, b)
			}
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())

			b := mustAsset(report, 2)
			Expect(b.CurrentAllocation).To(Equal(0.0))
			Expect(b.Contribution).Should(BeNumerically(">", 0))
			Expect(*b.ExitDate).To(Equal(day(3)))
			Expect(b.PeriodReturn).Should(BeNumerically("~", 30.0, 1e-9))
			Expect(b.WeightTrend[6].Weight).To(Equal(0.0))
		})
	})

	Context("with positions held on the anchor", func() {
		var report *attribution.Report

		BeforeEach(func() {
			in := newInput(day(1), day(2))
			addSnapshot(in, day(0), holding{1, 10, 100}, holding{2, 10, 50})
			addSnapshot(in, day(1), holding{1, 10, 110}, holding{2, 0, 55})
			addSnapshot(in, day(2), holding{1, 10, 121}, holding{2, 0, 60})

			var err error
			report, err = attribution.Compute(ctx, in, attribution.Options{Linking: attribution.LinkCompounded})
			Expect(err).To(BeNil())
			Expect(*report.AnchorDate).To(Equal(day(0)))
		})

		It("should report the entry on the first day of the window", func() {
			a := mustAsset(report, 1)
			Expect(*a.EntryDate).To(Equal(report.StartDate))
			Expect(*a.ExitDate).To(Equal(day(2)))
			Expect(a.PeriodReturn).Should(BeNumerically("~", 21.0, 1e-9))
		})

		It("should report no dates for an asset held only on the anchor", func() {
			b := mustAsset(report, 2)
			Expect(b.EntryDate).To(BeNil())
			Expect(b.ExitDate).To(BeNil())
			Expect(b.PeriodReturn).To(Equal(0.0))
			Expect(b.CurrentAllocation).To(Equal(0.0))
			Expect(b.Contribution).Should(BeNumerically("~", 10.0/3.0, 1e-9))
		})

		It("should keep every reported date inside the window", func() {
			for _, rec := range report.Assets {
				if rec.EntryDate != nil {
					Expect(rec.EntryDate.Before(report.StartDate)).To(BeFalse())
				}
				if rec.ExitDate != nil {
					Expect(rec.ExitDate.After(report.EndDate)).To(BeFalse())
				}
			}
			Expect(sumContributions(report.Assets)).Should(BeNumerically("~", report.TotalTWR, 1e-9))
		})
	})

	Context("with an asset bought and sold inside the window", func() {
		It("should report the round trip", func() {
			in := newInput(day(0), day(9))
			for n := 0; n < 10; n++ {
				a := holding{1, 10, 100 + float64(n)}
				b := holding{2, 0, 10 + float64(n)}
				if n >= 3 && n <= 6 {
					b.qty = 5
				}
				addSnapshot(in, day(n), a, b)
			}
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())

			b := mustAsset(report, 2)
			Expect(*b.EntryDate).To(Equal(day(3)))
			Expect(*b.ExitDate).To(Equal(day(6)))
			Expect(b.EntryDate.After(report.StartDate)).To(BeTrue())
			Expect(b.ExitDate.Before(report.EndDate)).To(BeTrue())
			Expect(b.CurrentAllocation).To(Equal(0.0))
			Expect(b.Contribution).Should(BeNumerically(">", 0))
			Expect(b.PeriodReturn).Should(BeNumerically("~", (16.0/13.0-1)*100, 1e-9))
		})
	})

	Context("with a missing price observation", func() {
		It("should count the day as zero return for that asset and warn", func() {
			in := twoAssetScenario(day(1))
			in.Prices = in.Prices[:3]
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			Expect(report.TotalTWR).Should(BeNumerically("~", 6.0, 1e-9))
			Expect(mustAsset(report, 2).Contribution).To(Equal(0.0))
			Expect(report.Warnings).To(HaveLen(1))
			Expect(report.Warnings[0].Code).To(Equal(attribution.WarnMissingPrice))
			Expect(report.Warnings[0].AssetID).To(Equal(int64(2)))
			Expect(report.Warnings[0].Date).To(Equal(day(1)))
		})
	})

	Context("with an asset filter", func() {
		It("should compute weights relative to the filtered subset", func() {
			report, err := attribution.Compute(ctx, twoAssetScenario(day(1)), attribution.Options{Filter: attribution.FilterDomestic})
			Expect(err).To(BeNil())
			Expect(report.Assets).To(HaveLen(1))
			Expect(report.Assets[0].AssetID).To(Equal(int64(1)))
			Expect(report.Assets[0].AvgWeight).Should(BeNumerically("~", 100.0, 1e-9))
			Expect(report.TotalTWR).Should(BeNumerically("~", 10.0, 1e-9))
			Expect(report.Filter).To(Equal(attribution.FilterDomestic))
		})

		It("should exclude assets without metadata from regional filters", func() {
			in := twoAssetScenario(day(1))
			delete(in.Assets, 1)
			delete(in.Assets, 2)
			_, err := attribution.Compute(ctx, in, attribution.Options{Filter: attribution.FilterForeign})
			Expect(errors.Is(err, attribution.ErrInsufficientData)).To(BeTrue())

			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			Expect(report.Assets[0].AssetClass).To(Equal(attribution.UnknownClass))
			Expect(report.Assets[0].Region).To(Equal(attribution.UnknownRegion))
		})
	})

	Context("with large daily swings", func() {
		var in *attribution.Input

		BeforeEach(func() {
			in = newInput(day(0), day(2))
			addSnapshot(in, day(0), holding{1, 1, 100}, holding{2, 1, 100})
			addSnapshot(in, day(1), holding{1, 1, 150}, holding{2, 1, 100})
			addSnapshot(in, day(2), holding{1, 1, 300}, holding{2, 1, 100})
		})

		It("should flag arithmetic linking as unreconciled", func() {
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			Expect(report.TotalTWR).Should(BeNumerically("~", 100.0, 1e-9))
			Expect(sumContributions(report.Assets)).Should(BeNumerically("~", 85.0, 1e-9))
			Expect(report.Reconciliation.IsValid).To(BeFalse())
			Expect(report.Reconciliation.Delta).Should(BeNumerically("~", 15.0, 1e-9))
		})

		It("should return the report and an error in strict mode", func() {
			report, err := attribution.Compute(ctx, in, attribution.Options{Strict: true})
			Expect(errors.Is(err, attribution.ErrReconciliationFailure)).To(BeTrue())
			Expect(report).ToNot(BeNil())
			Expect(report.Reconciliation.IsValid).To(BeFalse())
		})

		It("should reconcile exactly with compounded linking", func() {
			report, err := attribution.Compute(ctx, in, attribution.Options{Linking: attribution.LinkCompounded, Strict: true})
			Expect(err).To(BeNil())
			Expect(mustAsset(report, 1).Contribution).Should(BeNumerically("~", 100.0, 1e-9))
			Expect(report.Reconciliation.IsValid).To(BeTrue())
			Expect(report.Reconciliation.Linking).To(Equal(attribution.LinkCompounded))
		})
	})

	Context("with a synthetic portfolio over many days", func() {
		var in *attribution.Input

		BeforeEach(func() {
			rng := rand.New(rand.NewSource(42))
			in = newInput(day(1), day(40))
			prices := []float64{100, 50, 20, 1800, 95}
			qty := []float64{10, 20, 30, 0.5, 8}
			for n := 0; n <= 40; n++ {
				holdings := make([]holding, 0, len(prices))
				for idx := range prices {
					prices[idx] = float64(int64(prices[idx]*(1+(rng.Float64()-0.5)*0.06)*100)) / 100
					q := qty[idx]
					switch {
					case idx == 4 && n < 10:
						q = 0
					case idx == 2 && n > 30:
						q = 0
					}
					holdings = append(holdings, holding{int64(idx + 1), q, prices[idx]})
				}
				addSnapshot(in, day(n), holdings...)
			}
		})

		It("should reconcile within tolerance", func() {
			report, err := attribution.Compute(ctx, in, attribution.Options{Linking: attribution.LinkCompounded})
			Expect(err).To(BeNil())
			Expect(report.DailyReturns).To(HaveLen(40))
			Expect(report.Reconciliation.Delta).Should(BeNumerically("<", 1e-4))
			Expect(report.Reconciliation.IsValid).To(BeTrue())
		})

		It("should keep class contributions equal to asset contributions", func() {
			report, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			var classSum float64
			for _, class := range report.Classes {
				classSum += class.Contribution
			}
			Expect(classSum).Should(BeNumerically("~", sumContributions(report.Assets), 1e-9))
			Expect(report.Classes).To(HaveLen(3))
			Expect(report.Classes[0].AssetClass).To(Equal("Bond"))
			Expect(report.Classes[1].AssetClass).To(Equal("Commodity"))
			Expect(report.Classes[2].AssetClass).To(Equal("Equity"))
		})

		It("should be idempotent", func() {
			first, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())
			second, err := attribution.Compute(ctx, in, attribution.Options{})
			Expect(err).To(BeNil())

			a, err := json.Marshal(first)
			Expect(err).To(BeNil())
			b, err := json.Marshal(second)
			Expect(err).To(BeNil())
			Expect(a).To(Equal(b))
		})

		It("should truncate ranked lists", func() {
			report, err := attribution.Compute(ctx, in, attribution.Options{TopN: 1})
			Expect(err).To(BeNil())
			Expect(len(report.TopContributors)).Should(BeNumerically("<=", 1))
			Expect(len(report.TopDetractors)).Should(BeNumerically("<=", 1))
		})
	})
})
