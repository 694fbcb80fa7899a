// Package vercmp orders package version strings of the form
// [epoch:]pkgver[-pkgrel] the same way pacman does.
package vercmp

import "strings"

// Compare returns -1, 0 or 1 when a is older than, equal to or newer than b.
func Compare(a, b string) int {
	if a == b {
		return 0
	}

	epochA, verA, relA := parseEVR(a)
	epochB, verB, relB := parseEVR(b)

	ret := segments(epochA, epochB)
	if ret == 0 {
		ret = segments(verA, verB)
		if ret == 0 && relA != "" && relB != "" {
			ret = segments(relA, relB)
		}
	}
	return ret
}

// Newer reports whether candidate is strictly newer than installed.
func Newer(candidate, installed string) bool {
	return Compare(candidate, installed) > 0
}

// parseEVR splits "epoch:version-release". A missing epoch is "0" and a
// missing release is empty.
func parseEVR(evr string) (epoch, version, release string) {
	i := 0
	for i < len(evr) && isDigit(evr[i]) {
		i++
	}

	rest := evr
	epoch = "0"
	if i < len(evr) && evr[i] == ':' {
		if i > 0 {
			epoch = evr[:i]
		}
		rest = evr[i+1:]
	}

	if idx := strings.LastIndexByte(rest, '-'); idx != -1 {
		return epoch, rest[:idx], rest[idx+1:]
	}
	return epoch, rest, ""
}

// segments compares two version fragments segment by segment: runs of
// digits compare numerically, runs of letters lexically, and a numeric
// segment is always newer than an alphabetic one.
func segments(a, b string) int {
	if a == b {
		return 0
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		si, sj := i, j
		for i < len(a) && !isAlnum(a[i]) {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) {
			j++
		}
		if i >= len(a) || j >= len(b) {
			break
		}

		// differing separator lengths decide the comparison
		if i-si != j-sj {
			if i-si < j-sj {
				return -1
			}
			return 1
		}

		ei, ej := i, j
		isNum := isDigit(a[i])
		if isNum {
			for ei < len(a) && isDigit(a[ei]) {
				ei++
			}
			for ej < len(b) && isDigit(b[ej]) {
				ej++
			}
		} else {
			for ei < len(a) && isAlpha(a[ei]) {
				ei++
			}
			for ej < len(b) && isAlpha(b[ej]) {
				ej++
			}
		}

		// b's segment is of the other kind
		if ej == j {
			if isNum {
				return 1
			}
			return -1
		}

		segA, segB := a[i:ei], b[j:ej]
		if isNum {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) > len(segB) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			return c
		}

		i, j = ei, ej
	}

	restA, restB := i >= len(a), j >= len(b)
	if restA && restB {
		return 0
	}

	// a remaining alpha segment never beats an empty string
	if (restA && !isAlpha(b[j])) || (!restA && isAlpha(a[i])) {
		return -1
	}
	return 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
