package optimizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bayplan/core/conflict"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/solver"
)

// ContinuityMode selects how trips of one block relate to each other.
type ContinuityMode int

const (
	ContinuityOff ContinuityMode = iota
	// ContinuitySameBay keeps every trip of a block on one bay.
	ContinuitySameBay
	// ContinuityMaxDistance keeps consecutive trips of a block on bays at
	// most Distance metres apart.
	ContinuityMaxDistance
)

// Continuity is the block continuity rule of a request.
type Continuity struct {
	Mode     ContinuityMode
	Distance float64
}

// ParseContinuity reads "off", "same-bay" or "max-distance(d)" with d in
// metres. The empty string means off.
func ParseContinuity(s string) (Continuity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "off":
		return Continuity{Mode: ContinuityOff}, nil
	case "same-bay":
		return Continuity{Mode: ContinuitySameBay}, nil
	}
	if strings.HasPrefix(v, "max-distance(") && strings.HasSuffix(v, ")") {
		arg := strings.TrimSuffix(strings.TrimPrefix(v, "max-distance("), ")")
		d, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil || d <= 0 {
			return Continuity{}, fmt.Errorf("block continuity %q: distance must be a positive number of metres", s)
		}
		return Continuity{Mode: ContinuityMaxDistance, Distance: d}, nil
	}
	return Continuity{}, fmt.Errorf("block continuity %q: want off, same-bay or max-distance(d)", s)
}

func (c Continuity) String() string {
	switch c.Mode {
	case ContinuitySameBay:
		return "same-bay"
	case ContinuityMaxDistance:
		return "max-distance(" + strconv.FormatFloat(c.Distance, 'f', -1, 64) + ")"
	}
	return "off"
}

// Weights are the penalties of the primary objective.
type Weights struct {
	Conflict   float64 `json:"conflict"`
	Unassigned float64 `json:"unassigned"`
}

// DefaultWeights makes leaving a trip without a bay ten times worse than one
// residual conflict.
func DefaultWeights() Weights { return Weights{Conflict: 1, Unassigned: 10} }

// Request describes one assignment problem over a schedule.
type Request struct {
	// Trips lists the trips to place. Nil means every trip of the schedule.
	Trips []string
	// Fixed trips keep their bay and occupy it while others are placed.
	Fixed           model.Assignment
	Weights         Weights
	AllowUnassigned bool
	Continuity      Continuity
	Limits          solver.Limits
}

// Result is the best assignment found. It is returned whenever the
// configuration is structurally feasible, however many conflicts remain.
type Result struct {
	Assignment     model.Assignment    `json:"assignment"`
	Feasible       bool                `json:"feasible"`
	Optimal        bool                `json:"optimal"`
	LimitReached   bool                `json:"limit_reached"`
	ObjectiveValue float64             `json:"objective_value"`
	Conflicts      []conflict.Conflict `json:"conflicts"`
	Unassigned     []string            `json:"unassigned"`
	// ContinuityBreaks lists blocks whose consecutive trips break the
	// continuity rule, which only happens when the search found nothing
	// better than the warm start.
	ContinuityBreaks []string      `json:"continuity_breaks,omitempty"`
	Nodes            int           `json:"nodes"`
	Elapsed          time.Duration `json:"elapsed"`
}
