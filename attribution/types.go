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

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnknownClass  = "Unknown"
	UnknownRegion = "unknown"

	RegionDomestic = "domestic"
	RegionForeign  = "foreign"
)

// PositionSnapshot is the holding of one asset in a portfolio at the close of a day
type PositionSnapshot struct {
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Quantity    decimal.Decimal
	MarketValue decimal.Decimal
	AverageCost decimal.Decimal
}

// PriceObservation is a single closing price. Observations are sparse; holidays
// and vendor gaps simply have no row.
type PriceObservation struct {
	AssetID int64
	Date    time.Time
	Close   decimal.Decimal
}

// AssetMeta is the static classification of an asset
type AssetMeta struct {
	AssetID    int64
	Ticker     string
	Name       string
	AssetClass string
	Region     string
}

// Input is a fully materialized snapshot of everything the engine needs. The
// positions must include the anchor day, the last snapshot before Start, when
// one exists.
type Input struct {
	PortfolioID int64
	Start       time.Time
	End         time.Time
	Positions   []PositionSnapshot
	Prices      []PriceObservation
	Assets      map[int64]AssetMeta
}

// Meta returns the metadata for assetID, filling in Unknown for anything the
// loader did not provide.
func (in *Input) Meta(assetID int64) AssetMeta {
	meta, ok := in.Assets[assetID]
	if !ok {
		meta = AssetMeta{}
	}
	meta.AssetID = assetID
	if meta.AssetClass == "" {
		meta.AssetClass = UnknownClass
	}
	if meta.Region == "" {
		meta.Region = UnknownRegion
	}
	return meta
}

// Filter restricts the asset universe before any weight is computed
type Filter int

const (
	FilterAll Filter = iota
	FilterDomestic
	FilterForeign
)

// ParseFilter converts the wire representation of a filter; the empty string
// means FilterAll
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case RegionDomestic:
		return FilterDomestic, nil
	case RegionForeign:
		return FilterForeign, nil
	default:
		return FilterAll, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
}

func (f Filter) String() string {
	switch f {
	case FilterDomestic:
		return RegionDomestic
	case FilterForeign:
		return RegionForeign
	default:
		return "all"
	}
}

func (f Filter) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Filter) UnmarshalText(text []byte) error {
	parsed, err := ParseFilter(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Includes reports whether an asset with the given metadata survives the filter
func (f Filter) Includes(meta AssetMeta) bool {
	switch f {
	case FilterDomestic:
		return meta.Region == RegionDomestic
	case FilterForeign:
		return meta.Region == RegionForeign
	default:
		return true
	}
}

// Linking selects how daily contribution terms are combined into a period
// contribution
type Linking int

const (
	// LinkArithmetic sums the daily weight x return terms. The sum only
	// approximates the compounded portfolio TWR; the gap grows with large
	// daily swings.
	LinkArithmetic Linking = iota

	// LinkCompounded scales each daily term by the portfolio growth before
	// that day so that contributions add up to the compounded TWR exactly.
	LinkCompounded
)

func ParseLinking(s string) (Linking, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "arithmetic":
		return LinkArithmetic, nil
	case "compounded":
		return LinkCompounded, nil
	default:
		return LinkArithmetic, fmt.Errorf("%w: %q", ErrUnknownLinking, s)
	}
}

func (l Linking) String() string {
	if l == LinkCompounded {
		return "compounded"
	}
	return "arithmetic"
}

func (l Linking) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Linking) UnmarshalText(text []byte) error {
	parsed, err := ParseLinking(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// normalizeDate truncates t to midnight UTC of its calendar day
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
