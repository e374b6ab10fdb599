package solver

import "github.com/kilianp07/bayplan/core/factory"

// Backend names accepted by NewRegistry.
const (
	BackendBranchAndBound = "branch-and-bound"
	BackendStartOnly      = "warm-start"
)

type branchAndBoundConf struct {
	Tolerance float64 `json:"integrality_tolerance"`
}

// NewRegistry returns a registry with every built-in backend registered.
func NewRegistry() *factory.Registry[Solver] {
	reg := factory.NewRegistry[Solver]()
	_ = reg.Register(BackendBranchAndBound, func(conf map[string]any) (Solver, error) {
		var c branchAndBoundConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewBranchAndBound(c.Tolerance), nil
	})
	_ = reg.Register(BackendStartOnly, func(map[string]any) (Solver, error) {
		return StartOnly{}, nil
	})
	return reg
}
