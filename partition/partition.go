// Package partition splits a community into bounded-size sub-groups: hub and
// spoke groups peeled greedily around central nodes, then fixed-size batches
// of whatever is left.
package partition

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/vecgroup/graph"
	"github.com/hupe1980/vecgroup/model"
)

// ErrInvalidOptions is returned for inconsistent size bounds.
var ErrInvalidOptions = errors.New("partition: invalid options")

// Options holds the sub-group size bounds.
type Options struct {
	// MaxSubGroupSize is the upper bound of a hub-and-spoke group.
	MaxSubGroupSize int

	// MinOrphanGroupSize is the orphan batch size. Hub extraction stops once
	// fewer nodes than this remain.
	MinOrphanGroupSize int

	// MinHubSpokeGroupSize is the lower bound of a hub-and-spoke group.
	MinHubSpokeGroupSize int

	// Logger receives progress messages. Nil disables logging.
	Logger *slog.Logger
}

// DefaultOptions contains the default size bounds.
var DefaultOptions = Options{
	MaxSubGroupSize:      200,
	MinOrphanGroupSize:   100,
	MinHubSpokeGroupSize: 10,
}

// Validate checks the size bounds.
func (o Options) Validate() error {
	switch {
	case o.MaxSubGroupSize < 1:
		return fmt.Errorf("%w: max sub-group size must be >= 1, got %d", ErrInvalidOptions, o.MaxSubGroupSize)
	case o.MinOrphanGroupSize < 1:
		return fmt.Errorf("%w: min orphan group size must be >= 1, got %d", ErrInvalidOptions, o.MinOrphanGroupSize)
	case o.MinHubSpokeGroupSize < 1:
		return fmt.Errorf("%w: min hub-and-spoke group size must be >= 1, got %d", ErrInvalidOptions, o.MinHubSpokeGroupSize)
	case o.MinHubSpokeGroupSize > o.MaxSubGroupSize:
		return fmt.Errorf("%w: min hub-and-spoke group size %d exceeds max sub-group size %d", ErrInvalidOptions, o.MinHubSpokeGroupSize, o.MaxSubGroupSize)
	}

	return nil
}

// Partitioner applies the hub-and-spoke strategy to single communities.
type Partitioner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Partitioner.
func New(optFns ...func(o *Options)) (*Partitioner, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Partitioner{opts: opts, logger: logger}, nil
}

// Partition splits members (one community, in input order) using the edges
// of g between them. The returned groups cover members exactly once. Group
// IDs are left empty for the caller to assign.
func (p *Partitioner) Partition(g *graph.Graph, members []int64) []model.SubGroup {
	if len(members) == 0 {
		return nil
	}

	a := newArena(g, members)

	var groups []model.SubGroup

	for a.size() >= p.opts.MinOrphanGroupSize {
		group, ok := p.nextHub(a)
		if !ok {
			break
		}

		groups = append(groups, group)
	}

	hubs := len(groups)

	rest := a.leftovers()
	for lo := 0; lo < len(rest); lo += p.opts.MinOrphanGroupSize {
		hi := min(lo+p.opts.MinOrphanGroupSize, len(rest))

		groups = append(groups, model.SubGroup{
			GroupType: model.GroupOrphan,
			MemberIDs: append([]int64(nil), rest[lo:hi]...),
		})
	}

	p.logger.Debug("community partitioned",
		"members", len(members),
		"hub_groups", hubs,
		"orphan_groups", len(groups)-hubs,
	)

	return groups
}

// nextHub finds the most central remaining node whose spokes reach the minimum
// group size, peels the group and returns it.
func (p *Partitioner) nextHub(a *arena) (model.SubGroup, bool) {
	maxSpokes := p.opts.MaxSubGroupSize - 1

	for _, h := range a.byCentrality() {
		if 1+min(a.degreeAlive(h), maxSpokes) < p.opts.MinHubSpokeGroupSize {
			continue
		}

		spokes := a.aliveNeighbors(h, maxSpokes)

		hub := a.ids[h]
		memberIDs := make([]int64, 0, 1+len(spokes))
		memberIDs = append(memberIDs, hub)

		a.remove(h)

		for _, s := range spokes {
			memberIDs = append(memberIDs, a.ids[s.To])
			a.remove(s.To)
		}

		return model.SubGroup{
			GroupType: model.GroupHubAndSpoke,
			HubID:     &hub,
			MemberIDs: memberIDs,
		}, true
	}

	return model.SubGroup{}, false
}
