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
	"github.com/rs/zerolog"
)

func (r Reconciliation) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("Delta", r.Delta).
		Float64("Tolerance", r.Tolerance).
		Bool("IsValid", r.IsValid).
		Str("Linking", r.Linking.String())
}

func (w Warning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Code", string(w.Code)).Int64("AssetID", w.AssetID).Time("Date", w.Date)
}
