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

import "errors"

var (
	ErrInsufficientData      = errors.New("fewer than two snapshot dates available in range")
	ErrInvalidDateRange      = errors.New("start date must not be after end date")
	ErrReconciliationFailure = errors.New("asset contributions do not reconcile with portfolio return")
	ErrAssetNotFound         = errors.New("asset not found in attribution report")
	ErrUnknownFilter         = errors.New("unknown asset filter")
	ErrUnknownLinking        = errors.New("unknown linking method")
)
