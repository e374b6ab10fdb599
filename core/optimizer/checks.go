package optimizer

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/kilianp07/bayplan/core/model"
)

// decisionTrips resolves the trips the request places, sorted by ID. Fixed
// trips are never decisions.
func decisionTrips(s *model.Schedule, req Request) ([]model.Trip, error) {
	var out []model.Trip
	if req.Trips == nil {
		for _, t := range s.Trips() {
			if _, fixed := req.Fixed[t.ID]; !fixed {
				out = append(out, t)
			}
		}
		return out, nil
	}
	seen := make(map[string]bool, len(req.Trips))
	for _, id := range req.Trips {
		t, ok := s.Trip(id)
		if !ok {
			return nil, &model.DataError{Record: "request trip " + id, Field: "trip_id", Err: errors.New("unknown trip")}
		}
		if _, fixed := req.Fixed[id]; fixed || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// allowedBays returns the bays each decision trip may use. It fails with a
// *model.ConfigurationError when a trip has no compatible bay or the
// continuity rule cannot be met by any assignment.
func allowedBays(s *model.Schedule, trips []model.Trip, req Request) (map[string][]string, error) {
	allowed := make(map[string][]string, len(trips))
	for _, t := range trips {
		bays := s.CompatibleBays(t)
		if len(bays) == 0 {
			return nil, &model.ConfigurationError{
				Subject: "route " + t.RouteID,
				Reason:  fmt.Sprintf("trip %s has no compatible bay", t.ID),
			}
		}
		allowed[t.ID] = bays
	}
	switch req.Continuity.Mode {
	case ContinuitySameBay:
		if err := restrictSameBay(s, trips, req, allowed); err != nil {
			return nil, err
		}
	case ContinuityMaxDistance:
		if err := restrictDistance(s, trips, req, allowed); err != nil {
			return nil, err
		}
	}
	return allowed, nil
}

func restrictSameBay(s *model.Schedule, trips []model.Trip, req Request, allowed map[string][]string) error {
	for _, chain := range blockChains(s, trips, req.Fixed) {
		block := chain[0].BlockID
		var decision []model.Trip
		var fixedBays []string
		for _, t := range chain {
			if b, ok := req.Fixed[t.ID]; ok {
				if !slices.Contains(fixedBays, b) {
					fixedBays = append(fixedBays, b)
				}
				continue
			}
			decision = append(decision, t)
		}
		if len(decision) == 0 {
			continue
		}
		if len(fixedBays) > 1 {
			return &model.ConfigurationError{
				Subject: "block " + block,
				Reason:  "fixed trips use different bays " + strings.Join(fixedBays, ", "),
			}
		}
		common := slices.Clone(allowed[decision[0].ID])
		for _, t := range decision[1:] {
			common = slices.DeleteFunc(common, func(b string) bool { return !slices.Contains(allowed[t.ID], b) })
		}
		if len(fixedBays) == 1 {
			common = slices.DeleteFunc(common, func(b string) bool { return b != fixedBays[0] })
		}
		if len(common) == 0 {
			return &model.ConfigurationError{Subject: "block " + block, Reason: "no bay accepts every trip of the block"}
		}
		for _, t := range decision {
			allowed[t.ID] = common
		}
	}
	return nil
}

func restrictDistance(s *model.Schedule, trips []model.Trip, req Request, allowed map[string][]string) error {
	d := req.Continuity.Distance
	chains := blockChains(s, trips, req.Fixed)
	for _, chain := range chains {
		for i, t := range chain {
			if _, ok := req.Fixed[t.ID]; ok {
				continue
			}
			for _, k := range []int{i - 1, i + 1} {
				if k < 0 || k >= len(chain) {
					continue
				}
				fb, ok := req.Fixed[chain[k].ID]
				if !ok {
					continue
				}
				allowed[t.ID] = slices.DeleteFunc(slices.Clone(allowed[t.ID]), func(b string) bool { return !within(s, fb, b, d) })
				if len(allowed[t.ID]) == 0 {
					return &model.ConfigurationError{
						Subject: "block " + t.BlockID,
						Reason:  fmt.Sprintf("no bay for trip %s within %gm of bay %s", t.ID, d, fb),
					}
				}
			}
		}
	}
	if !req.AllowUnassigned {
		for _, chain := range chains {
			if err := propagateDistance(s, chain, req, allowed); err != nil {
				return err
			}
		}
	}
	for _, chain := range chains {
		for i := 1; i < len(chain); i++ {
			a, b := chain[i-1], chain[i]
			if _, ok := allowed[a.ID]; !ok {
				continue
			}
			if _, ok := allowed[b.ID]; !ok {
				continue
			}
			if !anyWithin(s, allowed[a.ID], allowed[b.ID], d) {
				return &model.ConfigurationError{
					Subject: "block " + a.BlockID,
					Reason:  fmt.Sprintf("no bays for trips %s and %s within %gm", a.ID, b.ID, d),
				}
			}
		}
	}
	return nil
}

// propagateDistance narrows the bays of a chain whose trips must all be
// placed until every bay left has a bay within range on both neighbours. On
// a chain that leaves no domain empty exactly when some assignment meets
// every link.
func propagateDistance(s *model.Schedule, chain []model.Trip, req Request, allowed map[string][]string) error {
	d := req.Continuity.Distance
	dom := make([][]string, len(chain))
	for i, t := range chain {
		if b, ok := req.Fixed[t.ID]; ok {
			dom[i] = []string{b}
		} else {
			dom[i] = slices.Clone(allowed[t.ID])
		}
	}
	narrow := func(i, by int) error {
		dom[i] = slices.DeleteFunc(dom[i], func(b string) bool { return !anyWithin(s, []string{b}, dom[by], d) })
		if len(dom[i]) == 0 {
			return &model.ConfigurationError{
				Subject: "block " + chain[i].BlockID,
				Reason:  fmt.Sprintf("no bay for trip %s keeps the block within %gm of %s", chain[i].ID, d, chain[by].ID),
			}
		}
		return nil
	}
	for i := len(chain) - 2; i >= 0; i-- {
		if err := narrow(i, i+1); err != nil {
			return err
		}
	}
	for i := 1; i < len(chain); i++ {
		if err := narrow(i, i-1); err != nil {
			return err
		}
	}
	for i, t := range chain {
		if _, ok := req.Fixed[t.ID]; !ok {
			allowed[t.ID] = dom[i]
		}
	}
	return nil
}

func anyWithin(s *model.Schedule, as, bs []string, d float64) bool {
	for _, a := range as {
		for _, b := range bs {
			if within(s, a, b, d) {
				return true
			}
		}
	}
	return false
}

// continuityBreaks lists the blocks whose assigned consecutive trips break
// the continuity rule.
func continuityBreaks(s *model.Schedule, trips []model.Trip, a model.Assignment, req Request) []string {
	if req.Continuity.Mode == ContinuityOff {
		return nil
	}
	var out []string
	for _, chain := range blockChains(s, trips, req.Fixed) {
		for i := 1; i < len(chain); i++ {
			_, fixedA := req.Fixed[chain[i-1].ID]
			_, fixedB := req.Fixed[chain[i].ID]
			if fixedA && fixedB {
				continue
			}
			ba, okA := a[chain[i-1].ID]
			bb, okB := a[chain[i].ID]
			broken := false
			switch req.Continuity.Mode {
			case ContinuitySameBay:
				broken = okA && okB && ba != bb
			case ContinuityMaxDistance:
				broken = okA && okB && !within(s, ba, bb, req.Continuity.Distance)
			}
			if broken {
				out = append(out, chain[i].BlockID)
				break
			}
		}
	}
	return out
}
