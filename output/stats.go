package output

import (
	"fmt"
	"io"

	"github.com/hupe1980/vecgroup/model"
)

// SizeStats summarizes a set of sizes.
type SizeStats struct {
	Min int
	Max int
	Avg float64
}

func sizeStats(sizes []int) (SizeStats, bool) {
	if len(sizes) == 0 {
		return SizeStats{}, false
	}

	s := SizeStats{Min: sizes[0], Max: sizes[0]}
	total := 0

	for _, n := range sizes {
		s.Min = min(s.Min, n)
		s.Max = max(s.Max, n)
		total += n
	}

	s.Avg = float64(total) / float64(len(sizes))

	return s, true
}

// Summary holds aggregate statistics of a grouping.
type Summary struct {
	Communities       int
	SubGroups         int
	HubAndSpokeGroups int
	OrphanGroups      int
	Items             int
	CommunitySize     SizeStats
	SubGroupSize      SizeStats
}

// Summarize computes the statistics of communities.
func Summarize(communities []model.Community) Summary {
	s := Summary{Communities: len(communities)}

	commSizes := make([]int, 0, len(communities))
	var groupSizes []int

	for _, c := range communities {
		commSizes = append(commSizes, c.TotalCount)
		s.Items += c.TotalCount

		for _, sg := range c.SubGroups {
			groupSizes = append(groupSizes, sg.Size())

			if sg.GroupType == model.GroupHubAndSpoke {
				s.HubAndSpokeGroups++
			} else {
				s.OrphanGroups++
			}
		}
	}

	s.SubGroups = len(groupSizes)
	s.CommunitySize, _ = sizeStats(commSizes)
	s.SubGroupSize, _ = sizeStats(groupSizes)

	return s
}

// WriteStats writes the statistics report. Size sections are omitted when
// there is nothing to summarize.
func WriteStats(w io.Writer, s Summary) error {
	ew := &errWriter{w: w}

	ew.printf("--- Community & Grouping Statistics ---\n\n")
	ew.printf("Total Items: %d\n", s.Items)
	ew.printf("Total Parent Communities: %d\n", s.Communities)
	ew.printf("Total Sub-Groups (Hub-Spoke + Orphan): %d\n", s.SubGroups)
	ew.printf("  - Hub-and-Spoke: %d\n", s.HubAndSpokeGroups)
	ew.printf("  - Orphan: %d\n\n", s.OrphanGroups)

	if s.Communities > 0 {
		writeSize(ew, "Parent Community Size", s.CommunitySize)
		ew.printf("\n")
	}

	if s.SubGroups > 0 {
		writeSize(ew, "Sub-Group Size", s.SubGroupSize)
	}

	return ew.err
}

func writeSize(ew *errWriter, title string, s SizeStats) {
	ew.printf("%s:\n  - Min: %d\n  - Max: %d\n  - Avg: %.2f\n", title, s.Min, s.Max, s.Avg)
}

// errWriter keeps the first write error and turns later writes into no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
