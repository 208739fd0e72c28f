// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package numconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlphabetRejectsDuplicates(t *testing.T) {
	_, err := NewAlphabet("AAB")
	require.Error(t, err)
}

func TestNewAlphabetRejectsUnsortedSymbols(t *testing.T) {
	_, err := NewAlphabet("BA")
	require.Error(t, err)
}

func TestNewAlphabetRejectsTooFewSymbols(t *testing.T) {
	_, err := NewAlphabet("A")
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a, err := NewAlphabet(DefaultAlphabet)
	require.NoError(t, err)

	for n := uint64(0); n < uint64(a.Base())*uint64(a.Base()); n++ {
		s, err := a.Encode(n, 2)
		require.NoError(t, err)
		assert.Len(t, s, 2)

		got, err := a.Decode(s)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestEncodeOrderAgreesWithNumericOrder(t *testing.T) {
	a, err := NewAlphabet(DefaultAlphabet)
	require.NoError(t, err)

	var prev string
	for n := uint64(0); n < 500; n++ {
		s, err := a.Encode(n, 3)
		require.NoError(t, err)
		if n > 0 {
			assert.Less(t, prev, s, "encoding of %d should sort after encoding of %d", n, n-1)
		}
		prev = s
	}
}

func TestEncodeCapacityExceeded(t *testing.T) {
	a, err := NewAlphabet("01")
	require.NoError(t, err)

	_, err = a.Encode(4, 2) // 2 binary digits hold 0..3
	require.Error(t, err)
}

func TestDecodeInvalidEncoding(t *testing.T) {
	a, err := NewAlphabet(DefaultAlphabet)
	require.NoError(t, err)

	_, err = a.Decode("A!B")
	require.Error(t, err)
}
