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


package database

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// types

type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	ErrEmptyRole    = errors.New("role cannot be an empty string")
	ErrNotConnected = errors.New("database pool has not been initialized")
)

type openTransaction struct {
	caller string
	role   string
	opened time.Time
}

// Private

var (
	pool             PgxIface
	openTransactions map[string]openTransaction
	trxMu            sync.Mutex
)

func trackTransaction(id, caller, role string) {
	trxMu.Lock()
	defer trxMu.Unlock()
	openTransactions[id] = openTransaction{caller: caller, role: role, opened: time.Now()}
}

func untrackTransaction(id string) {
	trxMu.Lock()
	defer trxMu.Unlock()
	delete(openTransactions, id)
}

// Public

func SetPool(myPool PgxIface) {
	trxMu.Lock()
	defer trxMu.Unlock()
	openTransactions = make(map[string]openTransaction)
	pool = myPool
}

func Connect(ctx context.Context) error {
	var err error
	myPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// LogOpenTransactions writes an INFO log for each open transaction
func LogOpenTransactions() {
	trxMu.Lock()
	defer trxMu.Unlock()
	for k, v := range openTransactions {
		log.Info().Str("TrxId", k).Str("Caller", v.caller).Str("Role", v.role).Dur("Age", time.Since(v.opened)).Msg("open transaction")
	}
}

// OpenTransactionCount returns the number of transactions that have been
// started but neither committed nor rolled back
func OpenTransactionCount() int {
	trxMu.Lock()
	defer trxMu.Unlock()
	return len(openTransactions)
}

// TrxForRole creates a transaction that runs as role. The role must already
// exist and be granted to the connecting user.
func TrxForRole(ctx context.Context, role string) (pgx.Tx, error) {
	if role == "" {
		log.Error().Stack().Msg("role cannot be an empty string")
		return nil, ErrEmptyRole
	}

	if pool == nil {
		return nil, ErrNotConnected
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	// record transactions in openTransaction log
	_, file, lineno, ok := runtime.Caller(1)
	caller := fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	trxID := uuid.New().String()
	trackTransaction(trxID, caller, role)

	wrappedTrx := &PvDbTx{
		id:     trxID,
		role:   role,
		opened: time.Now(),
		tx:     trx,
	}

	// NOTE: postgresql only sanitizes parameters of select, insert, update
	// and delete statements so the identifier is quoted by pgx
	ident := pgx.Identifier{role}
	sql := fmt.Sprintf("SET ROLE %s", ident.Sanitize())
	if _, err = wrappedTrx.Exec(ctx, sql); err != nil {
		log.Error().Stack().Err(err).Str("Role", role).Msg("could not switch role")
		if err := wrappedTrx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	return wrappedTrx, nil
}
