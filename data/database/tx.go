// Copyright 2021-2023
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

package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrUnsupported = errors.New("unsupported function")
	ErrReadOnly    = errors.New("attribution transactions are read-only")
)

// PvDbTx tracks a transaction from TrxForRole until it is committed or
// rolled back
type PvDbTx struct {
	id     string
	role   string
	opened time.Time
	tx     pgx.Tx
}

// finish stops tracking the transaction and warns when it was held open
// longer than database.slow_transaction
func (t *PvDbTx) finish(action string) {
	untrackTransaction(t.id)
	age := time.Since(t.opened)
	if limit := viper.GetDuration("database.slow_transaction"); limit > 0 && age > limit {
		log.Warn().Str("TrxId", t.id).Str("Role", t.role).Str("Action", action).Dur("Age", age).Msg("slow transaction")
	}
}

// Begin is refused; loaders read inside a single role-scoped transaction
func (t *PvDbTx) Begin(ctx context.Context) (pgx.Tx, error) {
	log.Error().Str("Role", t.role).Msg("nested transactions are not supported")
	return nil, ErrUnsupported
}

// BeginFunc is refused for the same reason as Begin
func (t *PvDbTx) BeginFunc(ctx context.Context, f func(pgx.Tx) error) (err error) {
	log.Error().Str("Role", t.role).Msg("nested transactions are not supported")
	return ErrUnsupported
}

// Commit ends the transaction and stops tracking it
func (t *PvDbTx) Commit(ctx context.Context) error {
	t.finish("commit")
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction and stops tracking it. It is safe to defer
// after a Commit.
func (t *PvDbTx) Rollback(ctx context.Context) error {
	t.finish("rollback")
	return t.tx.Rollback(ctx)
}

// CopyFrom is refused; snapshots are written by the ingestion jobs, never by
// the attribution service
func (t *PvDbTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	log.Error().Str("Role", t.role).Strs("Table", tableName).Msg("copy attempted in read-only transaction")
	return 0, ErrReadOnly
}

func (t *PvDbTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return t.tx.SendBatch(ctx, b)
}
func (t *PvDbTx) LargeObjects() pgx.LargeObjects {
	return t.tx.LargeObjects()
}

func (t *PvDbTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return t.tx.Prepare(ctx, name, sql)
}

func (t *PvDbTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (commandTag pgconn.CommandTag, err error) {
	return t.tx.Exec(ctx, sql, arguments...)
}

func (t *PvDbTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *PvDbTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *PvDbTx) QueryFunc(ctx context.Context, sql string, args []interface{}, scans []interface{}, f func(pgx.QueryFuncRow) error) (pgconn.CommandTag, error) {
	return t.tx.QueryFunc(ctx, sql, args, scans, f)
}

func (t *PvDbTx) Conn() *pgx.Conn {
	return t.tx.Conn()
}
