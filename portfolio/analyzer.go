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

// Package portfolio answers attribution requests for a portfolio: it resolves
// the requested period against the portfolio's snapshots, loads the input,
// runs the engine and caches the result.
package portfolio

import (
	"context"
	"errors"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/penny-vault/pv-attribution/common"
	"github.com/penny-vault/pv-attribution/data"
	"github.com/penny-vault/pv-attribution/observability/opentelemetry"
	"github.com/penny-vault/pv-attribution/period"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Source provides the data an Analyzer needs; *data.PvDb is the production
// implementation
type Source interface {
	Portfolio(ctx context.Context, id int64) (*data.Portfolio, error)
	Bounds(ctx context.Context, id int64) (period.Bounds, error)
	Load(ctx context.Context, id int64, r period.Range) (*attribution.Input, error)
}

// Request identifies one attribution computation
type Request struct {
	PortfolioID int64
	Period      period.Spec
	Filter      attribution.Filter
	TopN        int

	// Trace logs the engine's debug output for this request only
	Trace bool
}

// Analyzer runs attribution requests against a Source
type Analyzer struct {
	source  Source
	options attribution.Options
	cache   bool
}

// NewAnalyzer creates an analyzer; options provide the linking, tolerance and
// strictness of every report. Results are cached when cache is true.
func NewAnalyzer(source Source, options attribution.Options, cache bool) *Analyzer {
	return &Analyzer{
		source:  source,
		options: options,
		cache:   cache,
	}
}

// NewAnalyzerFromConfig reads the attribution.* configuration keys
func NewAnalyzerFromConfig(source Source) (*Analyzer, error) {
	linking, err := attribution.ParseLinking(viper.GetString("attribution.linking"))
	if err != nil {
		return nil, err
	}
	options := attribution.Options{
		Linking:   linking,
		Tolerance: viper.GetFloat64("attribution.tolerance"),
		TopN:      viper.GetInt("attribution.top_n"),
		Strict:    viper.GetBool("attribution.strict"),
	}
	return NewAnalyzer(source, options, viper.GetInt("cache.local_size") > 0), nil
}

// Resolve looks up the portfolio and turns the requested period into a date
// range
func (a *Analyzer) Resolve(ctx context.Context, req Request) (period.Range, error) {
	if _, err := a.source.Portfolio(ctx, req.PortfolioID); err != nil {
		return period.Range{}, err
	}

	bounds, err := a.source.Bounds(ctx, req.PortfolioID)
	if err != nil {
		return period.Range{}, err
	}

	return req.Period.Resolve(bounds)
}

// Attribution computes, or returns the cached, report for req
func (a *Analyzer) Attribution(ctx context.Context, req Request) (*attribution.Report, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.Attribution")
	defer span.End()

	subLog := log.With().Object("Request", req).Logger()
	span.SetAttributes(
		attribute.Int64("PortfolioID", req.PortfolioID),
		attribute.String("Period", req.Period.String()),
		attribute.String("Filter", req.Filter.String()),
	)

	r, err := a.Resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not resolve period")
		return nil, err
	}

	opts := a.options
	opts.Filter = req.Filter
	if req.TopN > 0 {
		opts.TopN = req.TopN
	}

	// traced requests always run the engine so the debug output is produced
	key := a.key("report", req.PortfolioID, r, opts)
	if !req.Trace {
		if report := a.cached(ctx, key, subLog); report != nil {
			span.SetAttributes(attribute.Bool("CacheHit", true))
			return report, nil
		}
	}

	input, err := a.source.Load(ctx, req.PortfolioID, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load input")
		return nil, err
	}

	report, err := attribution.Compute(a.engineContext(ctx, req, subLog), input, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attribution failed")
		return report, err
	}

	a.store(ctx, key, report, subLog)
	return report, nil
}

// AssetDetail computes the drill-down of one asset over the requested period.
// Assets filtered out of the report are not found.
func (a *Analyzer) AssetDetail(ctx context.Context, req Request, assetID int64) (*attribution.AssetDetail, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.AssetDetail")
	defer span.End()

	subLog := log.With().Object("Request", req).Int64("AssetID", assetID).Logger()
	span.SetAttributes(attribute.Int64("PortfolioID", req.PortfolioID), attribute.Int64("AssetID", assetID))

	r, err := a.Resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not resolve period")
		return nil, err
	}

	input, err := a.source.Load(ctx, req.PortfolioID, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load input")
		return nil, err
	}

	opts := a.options
	opts.Filter = req.Filter
	opts.Strict = false

	report, err := attribution.Compute(a.engineContext(ctx, req, subLog), input, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attribution failed")
		return nil, err
	}

	return attribution.Detail(report, input, assetID)
}

// Warm computes the all-time report of each portfolio so that the first
// request after a restart or a new snapshot is served from the cache
func (a *Analyzer) Warm(ctx context.Context, portfolioIDs []int64) {
	for _, id := range portfolioIDs {
		req := Request{PortfolioID: id, Period: period.Spec{Period: period.All}}
		if _, err := a.Attribution(ctx, req); err != nil {
			log.Warn().Err(err).Int64("PortfolioID", id).Msg("could not warm attribution cache")
		}
	}
}

func (a *Analyzer) engineContext(ctx context.Context, req Request, subLog zerolog.Logger) context.Context {
	if req.Trace {
		subLog = subLog.Level(zerolog.DebugLevel)
	}
	return subLog.WithContext(ctx)
}

func (a *Analyzer) key(kind string, id int64, r period.Range, opts attribution.Options) string {
	return common.CacheKey(
		kind,
		strconv.FormatInt(id, 10),
		r.Start.Format(common.DateLayout),
		r.End.Format(common.DateLayout),
		opts.Filter.String(),
		opts.Linking.String(),
		strconv.FormatFloat(opts.Tolerance, 'g', -1, 64),
		strconv.Itoa(opts.TopN),
	)
}

func (a *Analyzer) cached(ctx context.Context, key string, subLog zerolog.Logger) *attribution.Report {
	if !a.cache {
		return nil
	}

	raw, err := common.CacheGet(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrCacheMiss) {
			subLog.Warn().Err(err).Msg("could not read attribution cache")
		}
		return nil
	}

	report := &attribution.Report{}
	if err := json.Unmarshal(raw, report); err != nil {
		subLog.Warn().Err(err).Msg("could not decode cached report")
		return nil
	}
	return report
}

func (a *Analyzer) store(ctx context.Context, key string, report *attribution.Report, subLog zerolog.Logger) {
	if !a.cache {
		return
	}

	raw, err := json.Marshal(report)
	if err != nil {
		subLog.Warn().Err(err).Msg("could not encode report for cache")
		return
	}
	if err := common.CacheSet(ctx, key, raw); err != nil {
		subLog.Warn().Err(err).Msg("could not write attribution cache")
	}
}
