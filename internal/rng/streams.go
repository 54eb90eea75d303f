// Package rng derives independent, reproducible random streams from a base
// seed and a list of names (group label, fold index, column name, ...).
package rng

import (
	"math/rand"
	"strconv"
)

// Seed mixes names into base. The same inputs always give the same seed.
func Seed(base int64, names ...string) int64 {
	seed := base
	for _, name := range names {
		seed = seed*31 + int64(hashString(name))
	}
	return seed
}

// Stream returns a generator seeded with Seed(base, names...).
func Stream(base int64, names ...string) *rand.Rand {
	return rand.New(rand.NewSource(Seed(base, names...)))
}

// Index formats an integer for use as a stream name.
func Index(i int) string {
	return strconv.Itoa(i)
}

// Seeds draws n seeds from a single stream, for fanning work out to goroutines.
func Seeds(base int64, n int) []int64 {
	r := rand.New(rand.NewSource(base))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = r.Int63()
	}
	return seeds
}

// hashString is djb2.
func hashString(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}
