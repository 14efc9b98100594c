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
	"fmt"
	"os"
	"time"

	"github.com/penny-vault/pv-attribution/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Profile bool

func init() {
	cobra.OnInitialize(common.SetupLogging)

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	viper.BindEnv("database.slow_transaction", "PVATTR_SLOW_TRANSACTION")
	rootCmd.PersistentFlags().Duration("slow-transaction", 2*time.Second, "Warn about transactions held open longer than this; 0 disables the warning")
	viper.BindPFlag("database.slow_transaction", rootCmd.PersistentFlags().Lookup("slow-transaction"))

	// Logging configuration
	viper.BindEnv("log.level", "PVATTR_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVATTR_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVATTR_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVATTR_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Pretty print log messages")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Cache
	viper.BindEnv("cache.local_size", "PVATTR_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 1024, "Number of reports kept in the in-process cache; 0 disables caching")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.redis", "PVATTR_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "Store reports in redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "Redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	viper.BindEnv("cache.ttl", "PVATTR_CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", 3600, "Seconds a cached report stays valid")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	// Attribution
	viper.BindEnv("attribution.linking", "PVATTR_LINKING")
	rootCmd.PersistentFlags().String("linking", "arithmetic", "Contribution linking: arithmetic sums daily contributions, compounded scales them so they add up to the TWR")
	viper.BindPFlag("attribution.linking", rootCmd.PersistentFlags().Lookup("linking"))

	viper.BindEnv("attribution.tolerance", "PVATTR_TOLERANCE")
	rootCmd.PersistentFlags().Float64("tolerance", 0, "Reconciliation tolerance in percentage points; 0 uses the default")
	viper.BindPFlag("attribution.tolerance", rootCmd.PersistentFlags().Lookup("tolerance"))

	viper.BindEnv("attribution.strict", "PVATTR_STRICT")
	rootCmd.PersistentFlags().Bool("strict", false, "Fail when contributions do not reconcile with the portfolio TWR")
	viper.BindPFlag("attribution.strict", rootCmd.PersistentFlags().Lookup("strict"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector to send spans to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "PVATTR_OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use OTLP over http instead of grpc")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	viper.BindEnv("timezone", "PVATTR_TIMEZONE")

	rootCmd.PersistentFlags().BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
}

var rootCmd = &cobra.Command{
	Use:     "pvattr",
	Version: common.CurrentVersion.String(),
	Short:   "Time-weighted return attribution for Penny Vault portfolios",
	Long: `Decompose the time-weighted return of a portfolio into the contribution of
each asset and asset class, either on demand from the command line or through
an HTTP API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
