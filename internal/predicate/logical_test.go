// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnd4Table(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Result
		expected Result
	}{
		{"T_T", True, True, True},
		{"T_F", True, False, False},
		{"T_U", True, Unknown, Unknown},
		{"T_E", True, Err, Err},
		{"F_T", False, True, False},
		{"F_F", False, False, False},
		{"F_U", False, Unknown, False},
		{"F_E", False, Err, False},
		{"U_T", Unknown, True, Unknown},
		{"U_F", Unknown, False, False},
		{"U_U", Unknown, Unknown, Unknown},
		{"U_E", Unknown, Err, Err},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(OpAnd, tc.a, tc.b)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestOr4Table(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Result
		expected Result
	}{
		{"T_T", True, True, True},
		{"T_F", True, False, True},
		{"T_U", True, Unknown, True},
		{"T_E", True, Err, True},
		{"F_T", False, True, True},
		{"F_F", False, False, False},
		{"F_U", False, Unknown, Unknown},
		{"F_E", False, Err, Err},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(OpOr, tc.a, tc.b)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestIsAndIsNot(t *testing.T) {
	got, err := Eval(OpIs, True, True)
	assert.NoError(t, err)
	assert.Equal(t, True, got)

	got, err = Eval(OpIs, True, False)
	assert.NoError(t, err)
	assert.Equal(t, False, got)

	got, err = Eval(OpIsNot, True, False)
	assert.NoError(t, err)
	assert.Equal(t, True, got)

	got, err = Eval(OpIs, Err, True)
	assert.NoError(t, err)
	assert.Equal(t, Err, got)
}

func TestNot4(t *testing.T) {
	assert.Equal(t, False, not4(True))
	assert.Equal(t, True, not4(False))
	assert.Equal(t, Unknown, not4(Unknown))
	assert.Equal(t, Err, not4(Err))
}
