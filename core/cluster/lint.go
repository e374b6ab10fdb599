package cluster

import (
	"math"
	"sort"

	"github.com/kilianp07/bayplan/core/model"
)

// Lint finding kinds.
const (
	DistantMember  = "distant_member"
	NearbyOutsider = "nearby_outsider"
)

// LintOptions holds the distance thresholds in metres. A zero threshold
// disables its check.
type LintOptions struct {
	DistantMetres float64 `json:"distant_metres"`
	NearbyMetres  float64 `json:"nearby_metres"`
}

// DefaultLintOptions mirrors the usual field-check thresholds of roughly
// 1000 ft for distant members and 200 ft for nearby outsiders.
func DefaultLintOptions() LintOptions {
	return LintOptions{DistantMetres: 300, NearbyMetres: 60}
}

// LintFinding is an informational remark about cluster geometry.
type LintFinding struct {
	Kind      string  `json:"kind"`
	ClusterID string  `json:"cluster_id"`
	BayID     string  `json:"bay_id"`
	Other     string  `json:"other,omitempty"`
	Distance  float64 `json:"distance_metres"`
}

// Lint reports bays farther than DistantMetres from every other located
// member of their cluster, and bays outside any cluster lying within
// NearbyMetres of a cluster member. Bays without a location are ignored.
func Lint(s *model.Schedule, opts LintOptions) []LintFinding {
	members := make(map[string][]model.Bay)
	var outsiders []model.Bay
	for _, b := range s.Bays() {
		if b.Location == nil {
			continue
		}
		if b.ClusterID == "" {
			outsiders = append(outsiders, b)
			continue
		}
		members[b.ClusterID] = append(members[b.ClusterID], b)
	}

	out := []LintFinding{}
	for cid, bays := range members {
		if opts.DistantMetres > 0 && len(bays) > 1 {
			for _, b := range bays {
				nearest, other := math.Inf(1), ""
				for _, o := range bays {
					if o.ID == b.ID {
						continue
					}
					if d := model.Distance(*b.Location, *o.Location); d < nearest {
						nearest, other = d, o.ID
					}
				}
				if nearest > opts.DistantMetres {
					out = append(out, LintFinding{Kind: DistantMember, ClusterID: cid, BayID: b.ID, Other: other, Distance: nearest})
				}
			}
		}
		if opts.NearbyMetres > 0 {
			for _, b := range bays {
				for _, o := range outsiders {
					if d := model.Distance(*b.Location, *o.Location); d <= opts.NearbyMetres {
						out = append(out, LintFinding{Kind: NearbyOutsider, ClusterID: cid, BayID: o.ID, Other: b.ID, Distance: d})
					}
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ClusterID != b.ClusterID {
			return a.ClusterID < b.ClusterID
		}
		if a.BayID != b.BayID {
			return a.BayID < b.BayID
		}
		return a.Other < b.Other
	})
	return out
}
