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


package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/penny-vault/pv-attribution/common"
	"github.com/penny-vault/pv-attribution/data"
	"github.com/penny-vault/pv-attribution/period"
	"github.com/penny-vault/pv-attribution/portfolio"
	"github.com/rs/zerolog/log"
)

// Attributor computes reports; *portfolio.Analyzer is the production
// implementation
type Attributor interface {
	Attribution(ctx context.Context, req portfolio.Request) (*attribution.Report, error)
	AssetDetail(ctx context.Context, req portfolio.Request, assetID int64) (*attribution.AssetDetail, error)
}

var analyzer Attributor

// SetAttributor sets the service used by the attribution endpoints
func SetAttributor(a Attributor) {
	analyzer = a
}

// AllTimeAttribution computes the attribution from the portfolio's inception
func AllTimeAttribution(c *fiber.Ctx) error {
	req, err := baseRequest(c)
	if err != nil {
		return err
	}
	req.Period = period.Spec{Period: period.All}

	report, err := analyzer.Attribution(c.UserContext(), req)
	if err != nil {
		return statusFor(err, req)
	}
	return c.JSON(report)
}

// PeriodAttribution computes the attribution over either an explicit start
// and end date or a named period
func PeriodAttribution(c *fiber.Ctx) error {
	req, err := baseRequest(c)
	if err != nil {
		return err
	}
	if req.Period, err = periodQuery(c, true); err != nil {
		return err
	}

	report, err := analyzer.Attribution(c.UserContext(), req)
	if err != nil {
		return statusFor(err, req)
	}
	return c.JSON(report)
}

// AssetAttribution returns the drill-down of one asset
func AssetAttribution(c *fiber.Ctx) error {
	req, err := baseRequest(c)
	if err != nil {
		return err
	}

	assetID, err := strconv.ParseInt(c.Params("assetID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "asset id must be an integer")
	}

	if req.Period, err = periodQuery(c, false); err != nil {
		return err
	}

	detail, err := analyzer.AssetDetail(c.UserContext(), req, assetID)
	if err != nil {
		return statusFor(err, req)
	}
	return c.JSON(detail)
}

func baseRequest(c *fiber.Ctx) (portfolio.Request, error) {
	req := portfolio.Request{}

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "portfolio id must be an integer")
	}
	req.PortfolioID = id

	if req.Filter, err = attribution.ParseFilter(c.Query("filter", "all")); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if top := c.Query("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 0 {
			return req, fiber.NewError(fiber.StatusBadRequest, "top must be a non-negative integer")
		}
		req.TopN = n
	}

	if trace := c.Query("trace"); trace != "" {
		if req.Trace, err = strconv.ParseBool(trace); err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, "trace must be a boolean")
		}
	}

	return req, nil
}

// periodQuery reads start/end or period from the query string. When required
// is false and nothing is given the whole history is used.
func periodQuery(c *fiber.Ctx, required bool) (period.Spec, error) {
	startStr := c.Query("start")
	endStr := c.Query("end")
	periodStr := c.Query("period")

	if startStr == "" && endStr == "" {
		if periodStr == "" && required {
			return period.Spec{}, fiber.NewError(fiber.StatusBadRequest, "either start and end or period is required")
		}
		spec, err := period.Parse(periodStr)
		if err != nil {
			return spec, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return spec, nil
	}

	if startStr == "" || endStr == "" {
		return period.Spec{}, fiber.NewError(fiber.StatusBadRequest, "start and end must be given together")
	}

	start, err := common.ParseDate(startStr)
	if err != nil {
		return period.Spec{}, fiber.NewError(fiber.StatusBadRequest, "start must be formatted as YYYY-MM-DD")
	}
	end, err := common.ParseDate(endStr)
	if err != nil {
		return period.Spec{}, fiber.NewError(fiber.StatusBadRequest, "end must be formatted as YYYY-MM-DD")
	}

	spec, err := period.Between(start, end)
	if err != nil {
		return spec, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return spec, nil
}

func statusFor(err error, req portfolio.Request) error {
	switch {
	case errors.Is(err, data.ErrPortfolioNotFound), errors.Is(err, attribution.ErrAssetNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, period.ErrUnknownPeriod), errors.Is(err, period.ErrInvalidRange),
		errors.Is(err, attribution.ErrInvalidDateRange), errors.Is(err, data.ErrInvalidTimeRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, attribution.ErrInsufficientData), errors.Is(err, period.ErrNoData),
		errors.Is(err, attribution.ErrReconciliationFailure):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		log.Error().Err(err).Object("Request", req).Msg("attribution request failed")
		return fiber.ErrInternalServerError
	}
}
