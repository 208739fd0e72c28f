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

// Package numconv implements the bijection between non-negative integers
// and fixed-width strings over a configurable alphabet that the
// Materialized-Path engine uses to encode a single path step (spec section
// 4.A). It is a leaf utility: it knows nothing about trees.
package numconv

import (
	"fmt"
	"sort"

	"github.com/dolthub/go-tree-index/treeindex"
)

// Alphabet is an ordered, duplicate-free set of symbols whose
// lexicographic order agrees with their assigned numeric value: the
// symbol at index i represents digit i, and comparing two encodings of
// equal width character-by-character must agree with comparing the
// integers they represent.
type Alphabet struct {
	symbols []rune
	index   map[rune]int
}

// NewAlphabet validates symbols and builds an Alphabet over it. symbols
// must contain at least two distinct runes, each appearing once, in
// strictly increasing rune order -- the requirement that the alphabet's
// lexicographic order is its numeric order reduces to "the symbols are
// given already sorted."
func NewAlphabet(symbols string) (*Alphabet, error) {
	runes := []rune(symbols)
	if len(runes) < 2 {
		return nil, treeindex.ErrInvalidAlphabet.New(symbols, "alphabet must have at least 2 symbols")
	}
	index := make(map[rune]int, len(runes))
	for i, r := range runes {
		if _, dup := index[r]; dup {
			return nil, treeindex.ErrInvalidAlphabet.New(symbols, fmt.Sprintf("duplicate symbol %q", r))
		}
		index[r] = i
	}
	if !sort.SliceIsSorted(runes, func(i, j int) bool { return runes[i] < runes[j] }) {
		return nil, treeindex.ErrInvalidAlphabet.New(symbols, "symbols must be given in increasing order")
	}
	return &Alphabet{symbols: runes, index: index}, nil
}

// Base returns the alphabet's radix, R.
func (a *Alphabet) Base() int {
	return len(a.symbols)
}

// MaxValue returns the largest integer representable in width digits.
func (a *Alphabet) MaxValue(width int) uint64 {
	base := uint64(len(a.symbols))
	max := uint64(1)
	for i := 0; i < width; i++ {
		max *= base
	}
	return max - 1
}

// Encode returns the width-digit base-R representation of n. It fails
// with ErrCapacityExceeded if n does not fit in width digits.
func (a *Alphabet) Encode(n uint64, width int) (string, error) {
	base := uint64(len(a.symbols))
	digits := make([]int, width)
	v := n
	for i := width - 1; i >= 0; i-- {
		digits[i] = int(v % base)
		v /= base
	}
	if v != 0 {
		return "", treeindex.ErrCapacityExceeded.New(
			fmt.Sprintf("value %d does not fit in %d digits of base %d", n, width, base))
	}
	buf := make([]rune, width)
	for i, d := range digits {
		buf[i] = a.symbols[d]
	}
	return string(buf), nil
}

// Decode returns the integer represented by s. It fails with
// ErrInvalidEncoding on the first symbol of s not in the alphabet.
func (a *Alphabet) Decode(s string) (uint64, error) {
	base := uint64(len(a.symbols))
	var n uint64
	for _, r := range s {
		d, ok := a.index[r]
		if !ok {
			return 0, treeindex.ErrInvalidEncoding.New(s, string(r))
		}
		n = n*base + uint64(d)
	}
	return n, nil
}

// Valid reports whether every rune of s is in the alphabet, without
// computing its value.
func (a *Alphabet) Valid(s string) bool {
	for _, r := range s {
		if _, ok := a.index[r]; !ok {
			return false
		}
	}
	return true
}

// DefaultAlphabet is the digit+uppercase alphabet treebeard ships by
// default, ordered so lexicographic and numeric order agree.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
