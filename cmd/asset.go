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
	"os"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-attribution/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	assetPeriod string
	assetStart  string
	assetEnd    string
	assetJSON   bool
)

func init() {
	assetCmd.Flags().StringVar(&assetPeriod, "period", "all", "Period: all, inception, ytd, 1w, 1m, 3m, 6m, 1y, YYYY-Www or YYYY-MM")
	assetCmd.Flags().StringVar(&assetStart, "start", "", "First day of a custom period (YYYY-MM-DD)")
	assetCmd.Flags().StringVar(&assetEnd, "end", "", "Last day of a custom period (YYYY-MM-DD)")
	assetCmd.Flags().BoolVar(&assetJSON, "json", false, "Print the detail as JSON")

	rootCmd.AddCommand(assetCmd)
}

var assetCmd = &cobra.Command{
	Use:        "asset [flags] PortfolioID AssetID",
	Short:      "Show the price performance and contribution of one asset",
	Args:       cobra.ExactArgs(2),
	ArgAliases: []string{"PortfolioID", "AssetID"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		spec, err := periodSpec(assetPeriod, assetStart, assetEnd)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid period")
		}

		req := portfolio.Request{PortfolioID: parseID(args[0], "PortfolioID"), Period: spec}
		assetID := parseID(args[1], "AssetID")

		detail, err := newAnalyzer(ctx).AssetDetail(ctx, req, assetID)
		if err != nil {
			log.Fatal().Err(err).Object("Request", req).Int64("AssetID", assetID).Msg("could not compute asset detail")
		}

		if assetJSON {
			out, err := json.MarshalIndent(detail, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("could not encode asset detail")
			}
			fmt.Println(string(out))
			return
		}

		fmt.Printf("%s (%s) %s, %s\n", detail.Ticker, detail.Name, detail.AssetClass, detail.Region)
		fmt.Printf("Allocation: %s  Price return: %s  Contribution: %s\n\n",
			pct(detail.CurrentAllocation), pct(detail.PriceReturn), pct(detail.Contribution))

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Date", "Close", "Return"})
		table.SetBorder(false)
		for _, pt := range detail.PricePerformance {
			table.Append([]string{pt.Date.Format("2006-01-02"), pt.Close.StringFixed(2), pct(pt.Return)})
		}
		table.SetFooter([]string{"Num Rows", fmt.Sprintf("%d", len(detail.PricePerformance)), ""})
		table.Render()
	},
}
