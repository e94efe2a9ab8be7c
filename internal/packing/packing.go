// Package packing infers padding and alignment suggestions from the
// member layout recorded in debug info.
package packing

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/internal/classparse"
)

// Gap is one padding run between members. After names the member the
// gap follows, or "start" for a gap before the first member.
type Gap struct {
	After  string
	Offset int64
	Size   int64
	Tail   bool
}

// Info summarizes the layout analysis of one class.
type Info struct {
	ActualSize    int64
	NaturalSize   int64
	TotalPadding  int64
	SuggestedPack int
	Gaps          []Gap
}

// PragmaPack renders the matching directive; natural 8-byte alignment
// needs none.
func (i Info) PragmaPack() string {
	switch i.SuggestedPack {
	case 1:
		return "#pragma pack(push, 1)"
	case 4:
		return "#pragma pack(push, 4)"
	}
	return ""
}

// Analyze walks instance members in offset order, attributing an
// estimated size to each and accumulating inter-member and tail gaps.
// The gap before the first member is reported but not counted as
// padding; on derived classes that region is the base subobject.
// Suggested packing: 1 when padding is zero, 4 when padding stays
// within a tenth of the class size, else the 8-byte default.
func Analyze(model *classparse.ClassModel) Info {
	info := Info{ActualSize: model.ByteSize, SuggestedPack: 1}

	members := layoutMembers(model)
	if len(members) == 0 {
		return info
	}

	cursor := int64(0)
	for i, m := range members {
		if m.Offset > cursor {
			gap := Gap{After: "start", Offset: cursor, Size: m.Offset - cursor}
			if i > 0 {
				gap.After = members[i-1].Name
				info.TotalPadding += gap.Size
			}
			info.Gaps = append(info.Gaps, gap)
		}
		size := EstimateSize(m.TypeName)
		info.NaturalSize += size
		cursor = m.Offset + size
	}

	if model.ByteSize > cursor {
		tail := Gap{
			After:  members[len(members)-1].Name,
			Offset: cursor,
			Size:   model.ByteSize - cursor,
			Tail:   true,
		}
		info.TotalPadding += tail.Size
		info.Gaps = append(info.Gaps, tail)
	}

	switch {
	case info.TotalPadding == 0:
		info.SuggestedPack = 1
	case info.TotalPadding*10 <= model.ByteSize:
		info.SuggestedPack = 4
	default:
		info.SuggestedPack = 8
	}

	log.Debugf("packing %s: natural=%d actual=%d padding=%d pack=%d",
		model.Name, info.NaturalSize, info.ActualSize, info.TotalPadding, info.SuggestedPack)
	return info
}

// layoutMembers filters to instance members with a known offset,
// sorted by offset with declaration order as tiebreak.
func layoutMembers(model *classparse.ClassModel) []classparse.MemberModel {
	members := make([]classparse.MemberModel, 0, len(model.Members))
	for _, m := range model.Members {
		if m.Static || m.Offset < 0 {
			continue
		}
		members = append(members, m)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Offset < members[j].Offset
	})
	return members
}
