package output

import (
	"io"
	"math/rand/v2"
	"strings"

	"github.com/hupe1980/vecgroup/model"
)

const separatorWidth = 53

// SampleOptions controls the samples report.
type SampleOptions struct {
	// Communities is the number of sampled communities.
	Communities int
	// Members is the number of spokes or orphan members listed per group.
	Members int
}

// DefaultSampleOptions mirrors the report layout of the review tooling.
var DefaultSampleOptions = SampleOptions{
	Communities: 3,
	Members:     5,
}

// sample returns up to k distinct elements of s in random order.
func sample[T any](rng *rand.Rand, s []T, k int) []T {
	k = min(k, len(s))
	out := make([]T, 0, k)

	for _, i := range rng.Perm(len(s))[:k] {
		out = append(out, s[i])
	}

	return out
}

// WriteSamples writes a human-readable report of randomly sampled
// communities: for each, one hub-and-spoke group and one orphan group.
// titles maps item IDs to titles; unknown IDs print an empty title.
func WriteSamples(w io.Writer, communities []model.Community, titles map[int64]string, rng *rand.Rand, opts SampleOptions) error {
	ew := &errWriter{w: w}

	ew.printf("--- Community Samples ---\n\n")

	bar := strings.Repeat("=", separatorWidth)

	for _, c := range sample(rng, communities, opts.Communities) {
		ew.printf("%s\nPARENT COMMUNITY: %s (Total CDEs: %d)\n%s\n\n", bar, c.CommunityID, c.TotalCount, bar)

		var hubs, orphans []model.SubGroup

		for _, sg := range c.SubGroups {
			if sg.GroupType == model.GroupHubAndSpoke {
				hubs = append(hubs, sg)
			} else {
				orphans = append(orphans, sg)
			}
		}

		if len(hubs) > 0 {
			sg := hubs[rng.IntN(len(hubs))]
			hub := *sg.HubID

			ew.printf("--- Sample Hub-and-Spoke Group: %s (%d members) ---\n", sg.GroupID, sg.Size())
			ew.printf("  [HUB] ID: %d | Title: %s\n", hub, titles[hub])

			spokes := make([]int64, 0, len(sg.MemberIDs))
			for _, id := range sg.MemberIDs {
				if id != hub {
					spokes = append(spokes, id)
				}
			}

			for _, id := range sample(rng, spokes, opts.Members) {
				ew.printf("    [Spoke] ID: %d | Title: %s\n", id, titles[id])
			}

			ew.printf("\n")
		}

		if len(orphans) > 0 {
			sg := orphans[rng.IntN(len(orphans))]

			ew.printf("--- Sample Orphan Group: %s (%d members) ---\n", sg.GroupID, sg.Size())

			for _, id := range sample(rng, sg.MemberIDs, opts.Members) {
				ew.printf("    [Orphan] ID: %d | Title: %s\n", id, titles[id])
			}

			ew.printf("\n")
		}
	}

	return ew.err
}
