package output

import (
	"github.com/hupe1980/vecgroup/model"
)

// Assemble numbers communities and their sub-groups in emission order.
// subGroups[i] holds the partition of communities[i]. Community IDs are
// comm_0, comm_1, ...; group IDs run grp_0, grp_1, ... across the whole
// output.
func Assemble(communities [][]int64, subGroups [][]model.SubGroup) []model.Community {
	out := make([]model.Community, 0, len(communities))
	next := 0

	for i, members := range communities {
		groups := make([]model.SubGroup, 0, len(subGroups[i]))

		for _, sg := range subGroups[i] {
			sg.GroupID = model.GroupID(next)
			next++

			if sg.MemberIDs == nil {
				sg.MemberIDs = []int64{}
			}

			groups = append(groups, sg)
		}

		if members == nil {
			members = []int64{}
		}

		out = append(out, model.Community{
			CommunityID: model.CommunityID(i),
			TotalCount:  len(members),
			MemberIDs:   members,
			SubGroups:   groups,
		})
	}

	return out
}
