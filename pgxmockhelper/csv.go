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


package pgxmockhelper

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	// break raw data into an array of lines
	lines := strings.Split(string(rawData), "\n")

	// sanity checks:
	// - array length is at least 2 (header + trailing newline)
	// - make sure last line ends in newline
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	// parse header
	headerRaw := lines[0]
	lines = lines[1 : len(lines)-1] // discard first and last rows
	rows.header = strings.Split(headerRaw, ",")

	// parse each line and create a row
	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		parts := strings.Split(ll, ",")
		for idx, val := range parts {
			colName := rows.header[idx]
			switch typeMap[colName] {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "int64":
				parsed, err := strconv.ParseInt(val, 10, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to int64")
				}
				cols[idx] = parsed
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			default:
				// no type conversion specified - use as is
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	newRows := make([][]any, 0, len(csvRows.rows))
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if (t.Before(b) || t.Equal(b)) && (t.After(a) || t.Equal(a)) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Len() int {
	return len(csvRows.rows)
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// ExpectTrx expects a transaction that switches to a role
func ExpectTrx(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectExec("SET ROLE").WillReturnResult(pgconn.CommandTag("SET ROLE"))
}

func MockPortfolioQuery(db pgxmock.PgxConnIface, id int64, name string) {
	ExpectTrx(db)
	db.ExpectQuery("SELECT id, name, currency FROM portfolios").WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "currency"}).AddRow(id, name, "USD"))
	db.ExpectCommit()
}

func MockBoundsQuery(db pgxmock.PgxConnIface, first, last time.Time) {
	ExpectTrx(db)
	db.ExpectQuery("SELECT min").WillReturnRows(
		pgxmock.NewRows([]string{"min", "max"}).AddRow(first, last))
	db.ExpectCommit()
}

// MockLoad expects every query of a full attribution load. A zero anchor
// means the portfolio has no snapshot before start.
func MockLoad(db pgxmock.PgxConnIface, dir string, anchor, start, end time.Time) {
	ExpectTrx(db)

	anchorRows := pgxmock.NewRows([]string{"as_of_date"})
	from := start
	if !anchor.IsZero() {
		anchorRows.AddRow(anchor)
		from = anchor
	}
	db.ExpectQuery("SELECT as_of_date FROM portfolio_positions_daily").WillReturnRows(anchorRows)

	positions := NewCSVRows(dir+"/positions.csv", map[string]string{
		"asset_id":   "int64",
		"as_of_date": "date",
	}).Between(from, end)
	db.ExpectQuery("SELECT asset_id, as_of_date").WillReturnRows(positions.Rows())

	if positions.Len() > 0 {
		db.ExpectQuery("FROM prices").WillReturnRows(
			NewCSVRows(dir+"/prices.csv", map[string]string{
				"asset_id": "int64",
				"date":     "date",
			}).Between(from, end).Rows())
		db.ExpectQuery("FROM assets").WillReturnRows(
			NewCSVRows(dir+"/assets.csv", map[string]string{
				"id": "int64",
			}).Rows())
	}

	db.ExpectCommit()
}
