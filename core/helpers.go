package brc

import (
	"encoding/binary"
	"hash/maphash"
	"math/bits"

	"github.com/zeebo/xxh3"
)

const (
	separator  = ';'
	terminator = '\n'
)

// Keys are handled as raw bytes. The separator and terminator are single
// ASCII bytes that never occur inside a key, and UTF-8 continuation bytes
// are always >= 0x80, so slicing on them never cuts a multi-byte rune and
// no encoding validation is needed.

var patternNl = compilePattern(terminator)
var patternSemi = compilePattern(separator)

// Hasher maps key bytes to the 64 bits used to bucket a StatsMap entry.
// It must be safe for concurrent use: a single Hasher serves every worker.
type Hasher func(key []byte) uint64

// getHashFromBytes is a simple 64 bits FNV-1a for speed: https://en.wikipedia.org/wiki/Fowler%E2%80%93Noll%E2%80%93Vo_hash_function
// Not resistant to crafted collisions, use HashSeeded for untrusted input.
func getHashFromBytes(data []byte) uint64 {
	var p uint64 = 0x100000001b3
	var hash uint64 = 0xcbf29ce484222325
	for i := range data {
		hash = (hash ^ uint64(data[i])) * p
	}
	return hash
}

func getXXH3FromBytes(data []byte) uint64 {
	return xxh3.Hash(data)
}

// newSeededHasher keys xxh3 with a random per-run seed.
func newSeededHasher() Hasher {
	seed := new(maphash.Hash).Sum64()
	return func(data []byte) uint64 {
		return xxh3.HashSeed(data, seed)
	}
}

// NewHasher returns the hash function for a BrcHashType.
func NewHasher(hashType BrcHashType) (Hasher, error) {
	switch hashType {
	case HashFNV, "":
		return getHashFromBytes, nil
	case HashXXH3:
		return getXXH3FromBytes, nil
	case HashSeeded:
		return newSeededHasher(), nil
	}
	return nil, optionsError("unknown hash %q", hashType)
}

// findIndexOf returns the index of the first byte of haystack matching
// pattern, or -1. Eight bytes are tested per step.
func findIndexOf(haystack []byte, pattern uint64) int {
	var i int
	hLen := len(haystack)
	for i = 0; i < hLen/8*8; i += 8 {
		if index := firstInstance(
			binary.BigEndian.Uint64(haystack[i:i+8]), pattern); index != 8 {
			return i + index
		}
	}
	if hLen%8 == 0 {
		return -1
	}
	sliceToUint := uint64(0)
	switch hLen % 8 {
	case 7:
		sliceToUint |= (uint64(haystack[i+6]) << 8)
		fallthrough
	case 6:
		sliceToUint |= (uint64(haystack[i+5]) << 16)
		fallthrough
	case 5:
		sliceToUint |= (uint64(haystack[i+4]) << 24)
		fallthrough
	case 4:
		sliceToUint |= (uint64(haystack[i+3]) << 32)
		fallthrough
	case 3:
		sliceToUint |= (uint64(haystack[i+2]) << 40)
		fallthrough
	case 2:
		sliceToUint |= (uint64(haystack[i+1]) << 48)
		fallthrough
	case 1:
		sliceToUint |= (uint64(haystack[i]) << 56)
	}
	// the zero padding can only match a zero byte pattern
	if index := firstInstance(sliceToUint, pattern); index < hLen%8 {
		return i + index
	}
	return -1
}

// https://richardstartin.github.io/posts/finding-bytes
func compilePattern(byteToFind byte) uint64 {
	var pattern uint64 = uint64(byteToFind & 0xFF)
	return pattern |
		(pattern << 8) |
		(pattern << 16) |
		(pattern << 24) |
		(pattern << 32) |
		(pattern << 40) |
		(pattern << 48) |
		(pattern << 56)
}

func firstInstance(word, pattern uint64) int {
	var input uint64 = word ^ pattern
	var tmp uint64 = (input & 0x7F7F7F7F7F7F7F7F) + 0x7F7F7F7F7F7F7F7F
	tmp = ^(tmp | input | 0x7F7F7F7F7F7F7F7F)
	return bits.LeadingZeros64(tmp) >> 3
}

func isDigit(c byte) bool {
	return c-'0' < 10
}

// ParseTenths parses -?\d{1,2}\.\d into tenths: "-12.3" => -123.
// Dispatch is on length, and on the leading minus for length 4 where
// "99.9" and "-9.9" are otherwise ambiguous.
func ParseTenths(s []byte) (int32, error) {
	if v, ok := parseTenths(s); ok {
		return v, nil
	}
	return 0, &ParseError{Offset: -1, Line: append([]byte(nil), s...), Reason: ReasonValue}
}

func parseTenths(s []byte) (int32, bool) {
	switch len(s) {
	case 3: // 9.9
		if !isDigit(s[0]) || s[1] != '.' || !isDigit(s[2]) {
			return 0, false
		}
		return int32(s[0]-'0')*10 + int32(s[2]-'0'), true
	case 4:
		if s[0] == '-' { // -9.9
			if !isDigit(s[1]) || s[2] != '.' || !isDigit(s[3]) {
				return 0, false
			}
			return -(int32(s[1]-'0')*10 + int32(s[3]-'0')), true
		}
		// 99.9
		if !isDigit(s[0]) || !isDigit(s[1]) || s[2] != '.' || !isDigit(s[3]) {
			return 0, false
		}
		return int32(s[0]-'0')*100 + int32(s[1]-'0')*10 + int32(s[3]-'0'), true
	case 5: // -99.9
		if s[0] != '-' || !isDigit(s[1]) || !isDigit(s[2]) || s[3] != '.' || !isDigit(s[4]) {
			return 0, false
		}
		return -(int32(s[1]-'0')*100 + int32(s[2]-'0')*10 + int32(s[4]-'0')), true
	}
	return 0, false
}
