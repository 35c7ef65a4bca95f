// Package random provides utilities for generating random strings and numbers.
package random

import (
	"crypto/rand"
	"math/big"
)

var (
	numSeq      [10]rune
	lowerSeq    [26]rune
	upperSeq    [26]rune
	numLowerSeq [36]rune
	allSeq      [62]rune
)

func init() {
	for i := 0; i < 10; i++ {
		numSeq[i] = rune('0' + i)
	}
	for i := 0; i < 26; i++ {
		lowerSeq[i] = rune('a' + i)
		upperSeq[i] = rune('A' + i)
	}

	copy(numLowerSeq[:], numSeq[:])
	copy(numLowerSeq[len(numSeq):], lowerSeq[:])

	copy(allSeq[:], numSeq[:])
	copy(allSeq[len(numSeq):], lowerSeq[:])
	copy(allSeq[len(numSeq)+len(lowerSeq):], upperSeq[:])
}

func fill(seq []rune, n int) string {
	runes := make([]rune, n)
	for i := 0; i < n; i++ {
		runes[i] = seq[Num(len(seq))]
	}
	return string(runes)
}

// Seq generates a random alphanumeric string of length n.
func Seq(n int) string {
	return fill(allSeq[:], n)
}

// SeqRange generates a random alphanumeric string whose length is drawn
// uniformly from [min, max].
func SeqRange(min, max int) string {
	if max < min {
		min, max = max, min
	}
	return Seq(min + Num(max-min+1))
}

// LowerSeqRange is SeqRange restricted to digits and lowercase letters, for
// values that end up in hostnames.
func LowerSeqRange(min, max int) string {
	if max < min {
		min, max = max, min
	}
	return fill(numLowerSeq[:], min+Num(max-min+1))
}

// Num generates a random integer between 0 and n-1.
func Num(n int) int {
	bn := big.NewInt(int64(n))
	r, err := rand.Int(rand.Reader, bn)
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(r.Int64())
}

// Choice returns a random element of items. It panics on an empty slice.
func Choice[T any](items []T) T {
	return items[Num(len(items))]
}
