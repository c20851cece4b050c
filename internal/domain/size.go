// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Size is a byte count, stored as the canonical unit for torrent and file
// sizes throughout the store. Its string form matches the binary (1024)
// units MyAnonamouse itself reports.
type Size uint64

// SizeFromBytes constructs a Size from a raw byte count.
func SizeFromBytes(bytes uint64) Size {
	return Size(bytes)
}

// Bytes returns the raw byte count.
func (s Size) Bytes() uint64 {
	return uint64(s)
}

// String renders the size using binary units (B, KiB, MiB, GiB, TiB),
// rounded to two decimal places.
func (s Size) String() string {
	value := float64(s)
	unit := "B"
	switch {
	case value > math.Pow(1024, 4):
		value /= math.Pow(1024, 4)
		unit = "TiB"
	case value > math.Pow(1024, 3):
		value /= math.Pow(1024, 3)
		unit = "GiB"
	case value > math.Pow(1024, 2):
		value /= math.Pow(1024, 2)
		unit = "MiB"
	case value > 1024:
		value /= 1024
		unit = "KiB"
	}
	value = math.Round(value*100) / 100
	return fmt.Sprintf("%s %s", strconv.FormatFloat(value, 'f', -1, 64), unit)
}

var sizePattern = regexp.MustCompile(`^((?:\d{1,3},)?\d{1,6}(?:\.\d{1,3})?) ([kKMGT]?)(i)?B$`)

// ParseSize parses a size string in the form MAM reports it, e.g.
// "1.43 GiB" or "1,016.2 KiB". A unit suffixed with "i" is binary (1024),
// otherwise it is SI (1000).
func ParseSize(value string) (Size, error) {
	m := sizePattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("%w: invalid size value %q", ErrParse, value)
	}

	numeric := strings.ReplaceAll(m[1], ",", "")
	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid size value %q: %v", ErrParse, value, err)
	}

	base := 1000.0
	if m[3] == "i" {
		base = 1024.0
	}

	var multiplier float64
	switch m[2] {
	case "":
		multiplier = 1
	case "k", "K":
		multiplier = base
	case "M":
		multiplier = base * base
	case "G":
		multiplier = base * base * base
	case "T":
		multiplier = base * base * base * base
	default:
		return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrParse, m[2], value)
	}

	return Size(math.Round(amount * multiplier)), nil
}
