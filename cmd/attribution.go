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
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/penny-vault/pv-attribution/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	attrPeriod string
	attrStart  string
	attrEnd    string
	attrFilter string
	attrTop    int
	attrJSON   bool
	attrTrace  bool
)

func init() {
	attributionCmd.Flags().StringVar(&attrPeriod, "period", "all", "Period: all, inception, ytd, 1w, 1m, 3m, 6m, 1y, YYYY-Www or YYYY-MM")
	attributionCmd.Flags().StringVar(&attrStart, "start", "", "First day of a custom period (YYYY-MM-DD)")
	attributionCmd.Flags().StringVar(&attrEnd, "end", "", "Last day of a custom period (YYYY-MM-DD)")
	attributionCmd.Flags().StringVar(&attrFilter, "filter", "all", "Asset filter: all, domestic or foreign")
	attributionCmd.Flags().IntVar(&attrTop, "top", 5, "Number of top contributors and detractors to show")
	attributionCmd.Flags().BoolVar(&attrJSON, "json", false, "Print the report as JSON")
	attributionCmd.Flags().BoolVar(&attrTrace, "trace", false, "Log the engine's debug output")

	rootCmd.AddCommand(attributionCmd)
}

var attributionCmd = &cobra.Command{
	Use:        "attribution [flags] PortfolioID",
	Short:      "Compute the TWR attribution of a portfolio",
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"PortfolioID"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		spec, err := periodSpec(attrPeriod, attrStart, attrEnd)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid period")
		}

		filter, err := attribution.ParseFilter(attrFilter)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid filter")
		}

		req := portfolio.Request{
			PortfolioID: parseID(args[0], "PortfolioID"),
			Period:      spec,
			Filter:      filter,
			TopN:        attrTop,
			Trace:       attrTrace,
		}

		report, err := newAnalyzer(ctx).Attribution(ctx, req)
		if report == nil {
			log.Fatal().Err(err).Object("Request", req).Msg("could not compute attribution")
		}

		if attrJSON {
			out, jsonErr := json.MarshalIndent(report, "", "  ")
			if jsonErr != nil {
				log.Fatal().Err(jsonErr).Msg("could not encode report")
			}
			fmt.Println(string(out))
		} else {
			printReport(os.Stdout, report)
		}

		if err != nil {
			log.Fatal().Err(err).Msg("attribution failed")
		}
	},
}

func printReport(w io.Writer, report *attribution.Report) {
	fmt.Fprintf(w, "Portfolio %d: %s to %s (%s)\n", report.PortfolioID,
		report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"), report.Filter)
	fmt.Fprintf(w, "Total TWR: %.4f%%\n\n", report.TotalTWR)

	assets := tablewriter.NewWriter(w)
	assets.SetHeader([]string{"Ticker", "Class", "Region", "Avg Weight", "Return", "Contribution", "Allocation"})
	assets.SetBorder(false)
	for _, rec := range report.Assets {
		assets.Append([]string{
			rec.Ticker,
			rec.AssetClass,
			rec.Region,
			pct(rec.AvgWeight),
			pct(rec.PeriodReturn),
			pct(rec.Contribution),
			pct(rec.CurrentAllocation),
		})
	}
	assets.Render()
	fmt.Fprintln(w)

	classes := tablewriter.NewWriter(w)
	classes.SetHeader([]string{"Class", "Assets", "Avg Weight", "Contribution", "Allocation"})
	classes.SetBorder(false)
	for _, class := range report.Classes {
		classes.Append([]string{
			class.AssetClass,
			fmt.Sprintf("%d", len(class.Assets)),
			pct(class.AvgWeight),
			pct(class.Contribution),
			pct(class.CurrentAllocation),
		})
	}
	classes.Render()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Top contributors: %s\n", tickers(report.TopContributors))
	fmt.Fprintf(w, "Top detractors:   %s\n", tickers(report.TopDetractors))

	status := "ok"
	if !report.Reconciliation.IsValid {
		status = "FAILED"
	}
	fmt.Fprintf(w, "Reconciliation (%s): delta %.6f, tolerance %g: %s\n", report.Reconciliation.Linking,
		report.Reconciliation.Delta, report.Reconciliation.Tolerance, status)

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.4f%%", v)
}

func tickers(records []attribution.ContributionRecord) string {
	if len(records) == 0 {
		return "-"
	}
	names := make([]string, len(records))
	for idx, rec := range records {
		names[idx] = fmt.Sprintf("%s (%.4f)", rec.Ticker, rec.Contribution)
	}
	return strings.Join(names, ", ")
}
