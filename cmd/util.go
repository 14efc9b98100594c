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


package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/penny-vault/pv-attribution/common"
	"github.com/penny-vault/pv-attribution/data"
	"github.com/penny-vault/pv-attribution/data/database"
	"github.com/penny-vault/pv-attribution/period"
	"github.com/penny-vault/pv-attribution/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// newAnalyzer connects to the database and cache and returns an analyzer
// configured from viper
func newAnalyzer(ctx context.Context) *portfolio.Analyzer {
	if err := database.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}

	if err := common.SetupCache(); err != nil {
		log.Fatal().Err(err).Msg("could not setup cache")
	}

	analyzer, err := portfolio.NewAnalyzerFromConfig(data.NewPvDb())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid attribution configuration")
	}

	return analyzer
}

func parseID(s, name string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatal().Str(name, s).Msg("must be an integer")
	}
	return id
}

// periodSpec builds the requested period from either --start and --end or
// --period
func periodSpec(periodStr, startStr, endStr string) (period.Spec, error) {
	if startStr == "" && endStr == "" {
		return period.Parse(periodStr)
	}

	if startStr == "" || endStr == "" {
		return period.Spec{}, fmt.Errorf("%w: --start and --end must be given together", period.ErrInvalidRange)
	}

	start, err := common.ParseDate(startStr)
	if err != nil {
		return period.Spec{}, err
	}
	end, err := common.ParseDate(endStr)
	if err != nil {
		return period.Spec{}, err
	}

	return period.Between(start, end)
}

// warmPortfolios lists the portfolios whose all-time report is kept hot
func warmPortfolios() []int64 {
	ints := viper.GetIntSlice("attribution.warm_portfolios")
	ids := make([]int64, len(ints))
	for idx, id := range ints {
		ids[idx] = int64(id)
	}
	return ids
}
