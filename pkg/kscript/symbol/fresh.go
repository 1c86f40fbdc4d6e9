// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package symbol

import (
	"fmt"
	"strings"

	"go.uber.org/atomic"
)

// SEPARATOR divides the original identifier of a fresh name from its unique
// suffix.  Since this character cannot occur within a source identifier, fresh
// names never collide with names written by the user.
const SEPARATOR = "$"

// Counter shared by all expansions, including those running concurrently.
var freshCounter = atomic.NewUint64(0)

// Fresh allocates a globally unique name derived from a given identifier, such
// as "vi$17" for "vi".  Fresh names may themselves be refreshed, in which case
// the original identifier is retained (i.e. "vi$17" gives "vi$18" rather than
// "vi$17$18").
func Fresh(name string) string {
	return fmt.Sprintf("%s%s%d", Original(name), SEPARATOR, freshCounter.Inc())
}

// Original returns the identifier from which a (possibly fresh) name was
// derived.
func Original(name string) string {
	if i := strings.Index(name, SEPARATOR); i >= 0 {
		return name[:i]
	}
	//
	return name
}

// IsFresh checks whether a given name was allocated by Fresh.
func IsFresh(name string) bool {
	return strings.Contains(name, SEPARATOR)
}
