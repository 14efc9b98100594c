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


package data

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/penny-vault/pv-attribution/data/database"
	"github.com/penny-vault/pv-attribution/observability/opentelemetry"
	"github.com/penny-vault/pv-attribution/period"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultRole is the database role every read runs under
	DefaultRole = "pvuser"

	portfolioSQL = `SELECT id, name, currency FROM portfolios WHERE id=$1`

	boundsSQL = `SELECT min(as_of_date), max(as_of_date) FROM portfolio_positions_daily
	WHERE portfolio_id=$1 HAVING count(*) > 0`

	anchorSQL = `SELECT as_of_date FROM portfolio_positions_daily
	WHERE portfolio_id=$1 AND as_of_date < $2 ORDER BY as_of_date DESC LIMIT 1`

	positionsSQL = `SELECT asset_id, as_of_date, quantity::text, market_value::text, coalesce(avg_price, 0)::text
	FROM portfolio_positions_daily
	WHERE portfolio_id=$1 AND as_of_date BETWEEN $2 AND $3 ORDER BY as_of_date, asset_id`

	pricesSQL = `SELECT asset_id, date, close::text FROM prices
	WHERE asset_id = ANY($1) AND date BETWEEN $2 AND $3 ORDER BY asset_id, date`

	assetsSQL = `SELECT id, ticker, name, coalesce(asset_class, ''), coalesce(region, '') FROM assets
	WHERE id = ANY($1)`
)

// Portfolio is the header row of a portfolio
type Portfolio struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// PvDb loads position snapshots, prices and asset metadata from the
// portfolio database
type PvDb struct {
	role string
}

// NewPvDb creates a loader that reads as DefaultRole
func NewPvDb() *PvDb {
	return &PvDb{
		role: DefaultRole,
	}
}

// Portfolio returns the portfolio with id or ErrPortfolioNotFound
func (p *PvDb) Portfolio(ctx context.Context, id int64) (*Portfolio, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.Portfolio")
	defer span.End()

	subLog := log.With().Int64("PortfolioID", id).Logger()

	trx, err := database.TrxForRole(ctx, p.role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when loading portfolio")
		return nil, err
	}

	rows, err := trx.Query(ctx, portfolioSQL, id)
	if err != nil {
		return nil, abort(ctx, trx, span, subLog, err, "could not query portfolio")
	}

	var result *Portfolio
	for rows.Next() {
		result = &Portfolio{}
		if err := rows.Scan(&result.ID, &result.Name, &result.Currency); err != nil {
			rows.Close()
			return nil, abort(ctx, trx, span, subLog, err, "could not scan portfolio")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, abort(ctx, trx, span, subLog, err, "could not read portfolio")
	}

	if result == nil {
		return nil, abort(ctx, trx, span, subLog, ErrPortfolioNotFound, "portfolio does not exist")
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	return result, nil
}

// Bounds returns the first and last snapshot dates of the portfolio; both
// are zero when the portfolio has no snapshots
func (p *PvDb) Bounds(ctx context.Context, id int64) (period.Bounds, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.Bounds")
	defer span.End()

	subLog := log.With().Int64("PortfolioID", id).Logger()
	bounds := period.Bounds{}

	trx, err := database.TrxForRole(ctx, p.role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when loading snapshot bounds")
		return bounds, err
	}

	rows, err := trx.Query(ctx, boundsSQL, id)
	if err != nil {
		return bounds, abort(ctx, trx, span, subLog, err, "could not query snapshot bounds")
	}

	for rows.Next() {
		if err := rows.Scan(&bounds.First, &bounds.Last); err != nil {
			rows.Close()
			return bounds, abort(ctx, trx, span, subLog, err, "could not scan snapshot bounds")
		}
	}
	if err := rows.Err(); err != nil {
		return bounds, abort(ctx, trx, span, subLog, err, "could not read snapshot bounds")
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return bounds, err
	}

	return bounds, nil
}

// Load materializes everything the attribution engine needs for the range:
// the anchor snapshot before r.Start, every snapshot through r.End, the
// prices of the held assets over the same span and their metadata. All reads
// happen in one transaction.
func (p *PvDb) Load(ctx context.Context, id int64, r period.Range) (*attribution.Input, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.Load")
	defer span.End()

	subLog := log.With().Int64("PortfolioID", id).Time("Start", r.Start).Time("End", r.End).Logger()

	if r.Start.After(r.End) {
		subLog.Warn().Stack().Msg("start after end in call to Load")
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.TrxForRole(ctx, p.role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when loading attribution input")
		return nil, err
	}

	input := &attribution.Input{
		PortfolioID: id,
		Start:       r.Start,
		End:         r.End,
		Assets:      make(map[int64]attribution.AssetMeta),
	}

	// anchor day
	from := r.Start
	rows, err := trx.Query(ctx, anchorSQL, id, r.Start)
	if err != nil {
		return nil, abort(ctx, trx, span, subLog, err, "could not query anchor date")
	}
	for rows.Next() {
		if err := rows.Scan(&from); err != nil {
			rows.Close()
			return nil, abort(ctx, trx, span, subLog, err, "could not scan anchor date")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, abort(ctx, trx, span, subLog, err, "could not read anchor date")
	}

	// positions
	rows, err = trx.Query(ctx, positionsSQL, id, from, r.End)
	if err != nil {
		return nil, abort(ctx, trx, span, subLog, err, "could not query positions")
	}
	seen := make(map[int64]bool)
	assetIDs := make([]int64, 0)
	for rows.Next() {
		var pos attribution.PositionSnapshot
		var qty, value, avgPrice string
		if err := rows.Scan(&pos.AssetID, &pos.Date, &qty, &value, &avgPrice); err != nil {
			rows.Close()
			return nil, abort(ctx, trx, span, subLog, err, "could not scan position")
		}
		pos.PortfolioID = id
		if pos.Quantity, err = decimal.NewFromString(qty); err == nil {
			if pos.MarketValue, err = decimal.NewFromString(value); err == nil {
				pos.AverageCost, err = decimal.NewFromString(avgPrice)
			}
		}
		if err != nil {
			rows.Close()
			return nil, abort(ctx, trx, span, subLog, err, "could not parse position values")
		}
		if !seen[pos.AssetID] {
			seen[pos.AssetID] = true
			assetIDs = append(assetIDs, pos.AssetID)
		}
		input.Positions = append(input.Positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, abort(ctx, trx, span, subLog, err, "could not read positions")
	}

	if len(assetIDs) > 0 {
		// prices
		rows, err = trx.Query(ctx, pricesSQL, assetIDs, from, r.End)
		if err != nil {
			return nil, abort(ctx, trx, span, subLog, err, "could not query prices")
		}
		for rows.Next() {
			var obs attribution.PriceObservation
			var closeText string
			if err := rows.Scan(&obs.AssetID, &obs.Date, &closeText); err != nil {
				rows.Close()
				return nil, abort(ctx, trx, span, subLog, err, "could not scan price")
			}
			if obs.Close, err = decimal.NewFromString(closeText); err != nil {
				rows.Close()
				return nil, abort(ctx, trx, span, subLog, err, "could not parse close price")
			}
			input.Prices = append(input.Prices, obs)
		}
		if err := rows.Err(); err != nil {
			return nil, abort(ctx, trx, span, subLog, err, "could not read prices")
		}

		// asset metadata
		rows, err = trx.Query(ctx, assetsSQL, assetIDs)
		if err != nil {
			return nil, abort(ctx, trx, span, subLog, err, "could not query assets")
		}
		for rows.Next() {
			var meta attribution.AssetMeta
			if err := rows.Scan(&meta.AssetID, &meta.Ticker, &meta.Name, &meta.AssetClass, &meta.Region); err != nil {
				rows.Close()
				return nil, abort(ctx, trx, span, subLog, err, "could not scan asset")
			}
			input.Assets[meta.AssetID] = meta
		}
		if err := rows.Err(); err != nil {
			return nil, abort(ctx, trx, span, subLog, err, "could not read assets")
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	subLog.Debug().Int("Positions", len(input.Positions)).Int("Prices", len(input.Prices)).
		Int("Assets", len(input.Assets)).Time("From", from).Msg("loaded attribution input")

	return input, nil
}

// abort records err on the span, logs it and rolls the transaction back
func abort(ctx context.Context, trx pgx.Tx, span trace.Span, subLog zerolog.Logger, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	if errors.Is(err, ErrPortfolioNotFound) {
		subLog.Debug().Err(err).Msg(msg)
	} else {
		subLog.Warn().Stack().Err(err).Msg(msg)
	}
	if err := trx.Rollback(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
	return err
}
