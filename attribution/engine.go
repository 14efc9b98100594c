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

// Package attribution decomposes the time-weighted return of a portfolio into
// per-asset and per-asset-class contributions. The engine is a pure function
// of an in-memory Input; it performs no I/O.
package attribution

import (
	"context"
	"fmt"

	"github.com/penny-vault/pv-attribution/observability/opentelemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Options control a single engine invocation
type Options struct {
	Filter  Filter
	Linking Linking

	// Tolerance is the reconciliation tolerance in percentage points;
	// 0 selects DefaultTolerance
	Tolerance float64

	// TopN truncates the contributor and detractor lists; 0 keeps all
	TopN int

	// Strict turns a failed reconciliation into an error. The report is
	// still returned.
	Strict bool
}

// Compute runs the attribution pipeline over in. The logger is taken from ctx
// so a caller can trace a single invocation.
func Compute(ctx context.Context, in *Input, opts Options) (*Report, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "attribution.Compute")
	defer span.End()

	if in == nil {
		span.SetStatus(codes.Error, ErrInsufficientData.Error())
		return nil, ErrInsufficientData
	}

	logger := zerolog.Ctx(ctx).With().Int64("PortfolioID", in.PortfolioID).
		Time("Start", in.Start).Time("End", in.End).Str("Filter", opts.Filter.String()).Logger()

	tl, err := buildTimeline(in, opts.Filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug().Err(err).Int("Positions", len(in.Positions)).Msg("cannot compute attribution")
		return nil, err
	}

	acc := NewPeriodAccumulator(tl.universe, opts.Linking)
	report := &Report{
		PortfolioID: in.PortfolioID,
		StartDate:   normalizeDate(in.Start),
		EndDate:     normalizeDate(in.End),
		Filter:      opts.Filter,
	}
	if tl.anchor != nil {
		anchor := tl.anchor.Date
		report.AnchorDate = &anchor
	}

	for _, step := range tl.steps {
		acc.Add(step)
		if step.Boundary == nil {
			continue
		}
		for _, id := range step.Boundary.Missing {
			w := Warning{Code: WarnMissingPrice, AssetID: id, Date: step.Day.Date}
			report.Warnings = append(report.Warnings, w)
			logger.Debug().Object("Warning", w).Msg("missing price; day contribution treated as 0")
		}
	}

	resolver := NewEntryExitResolver(tl.anchor, tl.days(), tl.universe, NewPriceHistory(in.Prices))
	report.Assets = make([]ContributionRecord, 0, len(tl.universe))
	for _, id := range tl.universe {
		meta := in.Meta(id)
		holding := resolver.Resolve(id)
		report.Assets = append(report.Assets, ContributionRecord{
			AssetID:           id,
			Ticker:            meta.Ticker,
			Name:              meta.Name,
			AssetClass:        meta.AssetClass,
			Region:            meta.Region,
			AvgWeight:         acc.AvgWeight(id) * 100,
			PeriodReturn:      holding.PeriodReturn * 100,
			Contribution:      acc.Contribution(id) * 100,
			CurrentAllocation: holding.Allocation * 100,
			CurrentPrice:      holding.CurrentPrice.NullDecimal(),
			EntryDate:         holding.Entry,
			ExitDate:          holding.Exit,
			WeightTrend:       percentWeights(acc.WeightTrend(id)),
			ReturnTrend:       percentReturns(acc.ReturnTrend(id)),
		})
	}

	daily := acc.DailyReturns()
	report.DailyReturns = make([]DailyReturn, len(daily))
	for idx, d := range daily {
		report.DailyReturns[idx] = DailyReturn{Date: d.Date, Return: d.Return * 100, Value: d.Value}
	}

	report.TotalTWR = acc.TWR() * 100
	report.Classes = NewClassAggregator(tl.steps, tl.universe).Aggregate(report.Assets)
	report.TopContributors, report.TopDetractors = Rank(report.Assets, opts.TopN)
	report.Reconciliation = Reconcile(report.Assets, report.TotalTWR, opts.Tolerance, opts.Linking)

	span.SetAttributes(
		attribute.Int("Assets", len(report.Assets)),
		attribute.Int("Days", len(report.DailyReturns)),
		attribute.Float64("TotalTWR", report.TotalTWR),
		attribute.Bool("Reconciled", report.Reconciliation.IsValid),
	)

	if !report.Reconciliation.IsValid {
		logger.Warn().Object("Reconciliation", report.Reconciliation).Msg("contributions do not reconcile with portfolio TWR")
		if opts.Strict {
			err := fmt.Errorf("%w: delta %g exceeds tolerance %g", ErrReconciliationFailure,
				report.Reconciliation.Delta, report.Reconciliation.Tolerance)
			span.RecordError(err)
			span.SetStatus(codes.Error, "reconciliation failed")
			return report, err
		}
	}

	logger.Debug().Float64("TotalTWR", report.TotalTWR).Int("Days", len(report.DailyReturns)).Msg("computed attribution")
	return report, nil
}
