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

package lt

import "github.com/dolthub/go-tree-index/treeindex"

// lettersAlphabet is the unwidened label alphabet: digits are reserved
// for left-insertions and only enter the picture once a `before`
// constraint is in play (spec section 4.E).
const lettersAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// widenedAlphabet adds the ten digits, which sort below every letter, so
// that a label can always be shrunk (never just extended) to make room
// to its left.
const widenedAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func alphabetFor(hasBefore bool) string {
	if hasBefore {
		return widenedAlphabet
	}
	return lettersAlphabet
}

func symbolIndex(alphabet string, c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

// generateLabel returns the smallest label L, under the Cartesian,
// length-then-lexicographic enumeration order spec section 4.E
// describes, such that after < L < before (whichever bound is present)
// and L is not in skip.
//
// It does not actually enumerate candidates: positions where after and
// before agree are walked past in lock-step (the "skip the common
// prefix" rule), and at the first position offering real choice the
// smallest admissible symbol is picked directly, which is what keeps the
// whole call O(len(before)+len(after)) regardless of how many candidates
// a naive enumeration would have tried.
func generateLabel(after string, hasAfter bool, before string, hasBefore bool, skip map[string]bool) (string, error) {
	if hasAfter && hasBefore && before <= after {
		return "", treeindex.ErrInvalidLabelConstraints.New(after, before)
	}

	candidate, err := generateOnce(after, hasAfter, before, hasBefore)
	if err != nil {
		return "", err
	}
	for skip[candidate] {
		after, hasAfter = candidate, true
		candidate, err = generateOnce(after, hasAfter, before, hasBefore)
		if err != nil {
			return "", err
		}
	}
	return candidate, nil
}

func generateOnce(after string, hasAfter bool, before string, hasBefore bool) (string, error) {
	alphabet := alphabetFor(hasBefore)
	var result []byte

	afterActive, beforeActive := hasAfter, hasBefore
	for i := 0; ; i++ {
		loExists := afterActive && i < len(after)
		hiExists := beforeActive && i < len(before)

		if beforeActive && !hiExists && i >= len(before) && hasBefore {
			// The built prefix already equals before in full; no
			// symbol can be appended without exceeding it.
			return "", treeindex.ErrInvalidLabelConstraints.New(after, before)
		}

		switch {
		case !loExists && !hiExists:
			result = append(result, alphabet[0])
			return string(result), nil

		case loExists && !hiExists:
			loIdx := symbolIndex(alphabet, after[i])
			if loIdx < len(alphabet)-1 {
				result = append(result, alphabet[loIdx+1])
				return string(result), nil
			}
			// No symbol greater than after[i]; match it and keep
			// going. The lower bound stays active for the next
			// position unless this was after's last symbol, past
			// which any continuation already sorts after it.
			result = append(result, alphabet[loIdx])
			if i+1 >= len(after) {
				afterActive = false
			}

		case !loExists && hiExists:
			// No lower bound: the smallest symbol is always admissible
			// unless it equals before[i] exactly, in which case this
			// position must match it and the search continues deeper.
			hiIdx := symbolIndex(alphabet, before[i])
			result = append(result, alphabet[0])
			if hiIdx > 0 {
				return string(result), nil
			}

		default:
			loIdx := symbolIndex(alphabet, after[i])
			hiIdx := symbolIndex(alphabet, before[i])
			switch {
			case hiIdx-loIdx >= 2:
				result = append(result, alphabet[loIdx+1])
				return string(result), nil
			case hiIdx == loIdx:
				// after and before agree here; walk past it.
				result = append(result, alphabet[loIdx])
			default:
				// Adjacent, one symbol apart: match after[i] --
				// once this prefix is below before's, before can
				// never bind again.
				result = append(result, alphabet[loIdx])
				beforeActive = false
				if i+1 >= len(after) {
					afterActive = false
				}
			}
		}
	}
}
