// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package ramdisk

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/asch/ramdisk/internal/plugin"
)

// Multipliers of the recognized size suffixes. Everything except b and s is
// a power of 1024.
var sizeUnits = map[byte]int64{
	'b': 1,
	's': 512,
	'k': 1 << 10,
	'm': 1 << 20,
	'g': 1 << 30,
	't': 1 << 40,
	'p': 1 << 50,
	'e': 1 << 60,
}

// ParseSize parses human readable size like "512", "64K" or "100M" into
// number of bytes. Suffixes are case insensitive and the magnitude ones can
// also be written as "KB" or "KiB". Anything else, including negative
// numbers, fractions and values not fitting into int64, is rejected with
// plugin.ErrInvalidArgument.
func ParseSize(s string) (int64, error) {
	digits := len(s) - len(strings.TrimLeft(s, "0123456789"))
	if digits == 0 {
		return 0, fmt.Errorf("%w: size %q is not a number", plugin.ErrInvalidArgument, s)
	}

	n, err := strconv.ParseInt(s[:digits], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q is too large", plugin.ErrInvalidArgument, s)
	}

	multiplier, err := parseSizeSuffix(strings.ToLower(s[digits:]))
	if err != nil {
		return 0, fmt.Errorf("%w: size %q: %v", plugin.ErrInvalidArgument, s, err)
	}

	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("%w: size %q is too large", plugin.ErrInvalidArgument, s)
	}

	return n * multiplier, nil
}

func parseSizeSuffix(suffix string) (int64, error) {
	if suffix == "" {
		return 1, nil
	}

	unit, ok := sizeUnits[suffix[0]]
	if !ok {
		return 0, fmt.Errorf("unknown suffix %q", suffix)
	}

	switch rest := suffix[1:]; {
	case rest == "":
	case unit >= 1<<10 && (rest == "b" || rest == "ib"):
	default:
		return 0, fmt.Errorf("unknown suffix %q", suffix)
	}

	return unit, nil
}
