// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[solver.Solver]()
//	reg.Register("branch-and-bound", func(conf map[string]any) (solver.Solver, error) {
//	    var c struct{ Tolerance float64 `json:"integrality_tolerance"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return solver.NewBranchAndBound(c.Tolerance), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "branch-and-bound"})
package factory
