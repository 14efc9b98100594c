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
	"os/signal"
	"runtime/pprof"

	"github.com/go-co-op/gocron"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/penny-vault/pv-attribution/common"
	"github.com/penny-vault/pv-attribution/data/database"
	"github.com/penny-vault/pv-attribution/handler"
	"github.com/penny-vault/pv-attribution/middleware"
	"github.com/penny-vault/pv-attribution/observability/opentelemetry"
	"github.com/penny-vault/pv-attribution/router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.cors_origins", "PVATTR_CORS_ORIGINS")
	serveCmd.Flags().String("cors-origins", "http://localhost:8080, https://www.pennyvault.com", "Origins allowed to call the API")
	viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origins"))

	viper.BindEnv("attribution.warm_interval", "PVATTR_WARM_INTERVAL")
	serveCmd.Flags().String("warm-interval", "1h", "How often the all-time report of each warm portfolio is recomputed")
	viper.BindPFlag("attribution.warm_interval", serveCmd.Flags().Lookup("warm-interval"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the attribution server",
	Long:  `Run HTTP server that serves portfolio attribution reports`,
	Run: func(cmd *cobra.Command, args []string) {
		if Profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create profile output file")
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Fatal().Err(err).Msg("could not start cpu profile")
			}
			defer pprof.StopCPUProfile()
		}

		ctx := context.Background()

		shutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("could not shutdown tracer")
			}
		}()

		analyzer := newAnalyzer(ctx)
		handler.SetAttributor(analyzer)
		log.Info().Msg("initialized attribution analyzer")

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("could not shutdown server")
			}
		}()

		// Configure CORS
		app.Use(cors.New(cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,HEAD",
		}))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app)

		// Keep configured portfolios warm and report leaked transactions
		scheduler := gocron.NewScheduler(common.GetTimezone())
		warm := warmPortfolios()
		if len(warm) > 0 {
			if _, err := scheduler.Every(viper.GetString("attribution.warm_interval")).Do(analyzer.Warm, ctx, warm); err != nil {
				log.Fatal().Err(err).Msg("could not schedule cache warm-up")
			}
		}
		if _, err := scheduler.Every(5).Minutes().Do(database.LogOpenTransactions); err != nil {
			log.Fatal().Err(err).Msg("could not schedule transaction report")
		}
		scheduler.StartAsync()
		defer scheduler.Stop()

		err = app.Listen(":" + viper.GetString("server.port"))
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	},
}
