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

package attribution

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Quote is an optional closing price. The zero value is the missing quote.
type Quote struct {
	close   decimal.Decimal
	present bool
}

// Missing is the quote of a day without a price observation
var Missing = Quote{}

// Price wraps an observed close
func Price(close decimal.Decimal) Quote {
	return Quote{close: close, present: true}
}

func (q Quote) IsMissing() bool {
	return !q.present
}

// Close returns the price and whether one was observed
func (q Quote) Close() (decimal.Decimal, bool) {
	return q.close, q.present
}

// Return computes the simple return from prev to q. ok is false when either
// quote is missing or the prior price is not positive.
func (q Quote) Return(prev Quote) (r float64, ok bool) {
	if !q.present || !prev.present || !prev.close.IsPositive() {
		return 0, false
	}
	return q.close.Div(prev.close).Sub(one).InexactFloat64(), true
}

// NullDecimal converts the quote to its JSON friendly optional form
func (q Quote) NullDecimal() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: q.close, Valid: q.present}
}
