package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"swvcs/internal/vcs"
)

// unavailable is printed for metadata fields that were not captured.
const unavailable = "--"

var (
	hashColor = color.New(color.FgYellow).SprintFunc()
	headColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	errColor  = color.New(color.FgRed).SprintFunc()
)

// formatHash returns the short or full hash, colored.
func formatHash(hash string, full bool) string {
	if !full {
		hash = vcs.ShortHash(hash)
	}
	return hashColor(hash)
}

// headMarker returns the column shown before a log line.
func headMarker(isHead bool) string {
	if isHead {
		return headColor("*")
	}
	return " "
}

// formatTime renders a stored UTC timestamp in local time. Unparseable
// values are shown as stored.
func formatTime(c *vcs.Commit) string {
	t := c.Time()
	if t.IsZero() {
		return c.Timestamp
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatQuantity prints v with unit, or the unavailable marker for zero.
func formatQuantity(v float64, unit string) string {
	if v <= 0 {
		return unavailable
	}
	s := strconv.FormatFloat(v, 'g', 6, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// formatCount prints n, or the unavailable marker for zero.
func formatCount(n int) string {
	if n <= 0 {
		return unavailable
	}
	return humanize.Comma(int64(n))
}

// formatText prints s, or the unavailable marker when empty.
func formatText(s string) string {
	if strings.TrimSpace(s) == "" {
		return unavailable
	}
	return s
}

// formatSize prints a byte count in human units.
func formatSize(n int64) string {
	if n <= 0 {
		return unavailable
	}
	return humanize.Bytes(uint64(n))
}

// formatExtents prints the bounding box as X x Y x Z mm.
func formatExtents(m vcs.DocMetadata) string {
	if !m.HasBoundingBox() {
		return unavailable
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return fmt.Sprintf("%s x %s x %s mm", f(m.BBoxX), f(m.BBoxY), f(m.BBoxZ))
}

// formatAge prints how long ago a commit was made.
func formatAge(c *vcs.Commit, now time.Time) string {
	t := c.Time()
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
