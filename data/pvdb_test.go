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


package data_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/pv-attribution/attribution"
	"github.com/penny-vault/pv-attribution/data"
	"github.com/penny-vault/pv-attribution/data/database"
	"github.com/penny-vault/pv-attribution/period"
	"github.com/penny-vault/pv-attribution/pgxmockhelper"
)

func date(d int) time.Time {
	return time.Date(2022, time.January, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("PVDB tests", func() {
	var (
		dbPool pgxmock.PgxConnIface
		pvdb   *data.PvDb
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		pvdb = data.NewPvDb()
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		Expect(database.OpenTransactionCount()).To(Equal(0))
	})

	Context("when loading a portfolio", func() {
		It("returns the portfolio header", func() {
			pgxmockhelper.MockPortfolioQuery(dbPool, 1, "Retirement")
			p, err := pvdb.Portfolio(ctx, 1)
			Expect(err).To(BeNil())
			Expect(p.ID).To(Equal(int64(1)))
			Expect(p.Name).To(Equal("Retirement"))
			Expect(p.Currency).To(Equal("USD"))
		})

		It("fails with not found for an unknown portfolio", func() {
			pgxmockhelper.ExpectTrx(dbPool)
			dbPool.ExpectQuery("SELECT id, name, currency FROM portfolios").WillReturnRows(
				pgxmock.NewRows([]string{"id", "name", "currency"}))
			dbPool.ExpectRollback()

			_, err := pvdb.Portfolio(ctx, 42)
			Expect(errors.Is(err, data.ErrPortfolioNotFound)).To(BeTrue())
		})
	})

	Context("when loading snapshot bounds", func() {
		It("returns the first and last snapshot dates", func() {
			pgxmockhelper.MockBoundsQuery(dbPool, date(3), date(7))
			bounds, err := pvdb.Bounds(ctx, 1)
			Expect(err).To(BeNil())
			Expect(bounds.First).To(Equal(date(3)))
			Expect(bounds.Last).To(Equal(date(7)))
		})

		It("returns zero bounds without snapshots", func() {
			pgxmockhelper.ExpectTrx(dbPool)
			dbPool.ExpectQuery("SELECT min").WillReturnRows(pgxmock.NewRows([]string{"min", "max"}))
			dbPool.ExpectCommit()

			bounds, err := pvdb.Bounds(ctx, 1)
			Expect(err).To(BeNil())
			Expect(bounds.First.IsZero()).To(BeTrue())
			Expect(bounds.Last.IsZero()).To(BeTrue())
		})
	})

	Context("when loading attribution input", func() {
		It("includes the anchor snapshot before start", func() {
			pgxmockhelper.MockLoad(dbPool, "../testdata", date(4), date(5), date(7))
			input, err := pvdb.Load(ctx, 1, period.Range{Start: date(5), End: date(7)})
			Expect(err).To(BeNil())

			Expect(input.PortfolioID).To(Equal(int64(1)))
			Expect(input.Start).To(Equal(date(5)))
			Expect(input.End).To(Equal(date(7)))
			Expect(input.Positions).To(HaveLen(11))
			Expect(input.Positions[0].Date).To(Equal(date(4)))
			Expect(input.Positions[0].MarketValue.String()).To(Equal("1020"))
			Expect(input.Positions[0].AverageCost.String()).To(Equal("95"))
			Expect(input.Prices).To(HaveLen(11))
			Expect(input.Assets).To(HaveLen(3))
			Expect(input.Assets[3].AssetClass).To(Equal("Bond"))
			Expect(input.Assets[2].Region).To(Equal("foreign"))
		})

		It("starts at the range when there is no earlier snapshot", func() {
			pgxmockhelper.MockLoad(dbPool, "../testdata", time.Time{}, date(3), date(4))
			input, err := pvdb.Load(ctx, 1, period.Range{Start: date(3), End: date(4)})
			Expect(err).To(BeNil())
			Expect(input.Positions).To(HaveLen(4))
			Expect(input.Prices).To(HaveLen(4))
		})

		It("produces input the engine can attribute", func() {
			pgxmockhelper.MockLoad(dbPool, "../testdata", date(3), date(4), date(7))
			input, err := pvdb.Load(ctx, 1, period.Range{Start: date(4), End: date(7)})
			Expect(err).To(BeNil())

			report, err := attribution.Compute(ctx, input, attribution.Options{Linking: attribution.LinkCompounded})
			Expect(err).To(BeNil())
			Expect(report.DailyReturns).To(HaveLen(4))
			Expect(report.Reconciliation.IsValid).To(BeTrue())

			beta, ok := report.Asset(2)
			Expect(ok).To(BeTrue())
			Expect(beta.CurrentAllocation).To(Equal(0.0))
			Expect(*beta.ExitDate).To(Equal(date(6)))

			gamma, ok := report.Asset(3)
			Expect(ok).To(BeTrue())
			Expect(*gamma.EntryDate).To(Equal(date(5)))
			Expect(gamma.PeriodReturn).Should(BeNumerically("~", 2.0, 1e-9))
		})

		It("rejects an inverted range", func() {
			_, err := pvdb.Load(ctx, 1, period.Range{Start: date(7), End: date(3)})
			Expect(errors.Is(err, data.ErrInvalidTimeRange)).To(BeTrue())
		})

		It("rolls back when a query fails", func() {
			pgxmockhelper.ExpectTrx(dbPool)
			dbPool.ExpectQuery("SELECT as_of_date FROM portfolio_positions_daily").WillReturnError(errors.New("connection reset"))
			dbPool.ExpectRollback()

			_, err := pvdb.Load(ctx, 1, period.Range{Start: date(3), End: date(7)})
			Expect(err).ToNot(BeNil())
		})

		It("fails when the role cannot be set", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectExec("SET ROLE").WillReturnError(&pgconn.PgError{Code: "22023", Message: "role does not exist"})
			dbPool.ExpectRollback()

			_, err := pvdb.Load(ctx, 1, period.Range{Start: date(3), End: date(7)})
			Expect(err).ToNot(BeNil())
		})
	})
})
