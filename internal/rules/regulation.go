package rules

import "sort"

// CheckRegulation verifies every requirement of a regulation. All requirements
// must be met for compliance; on failure the configured penalties are surfaced
// on the result for downstream handling, never applied here.
func (e *Engine) CheckRegulation(reg Regulation, inputs Inputs) RegulationResult {
	result := RegulationResult{
		RegulationID:       reg.ID,
		Name:               reg.Name,
		Jurisdiction:       reg.Jurisdiction,
		Status:             RegulationCompliant,
		RequirementsMet:    true,
		RequirementResults: make(map[string]ConditionResult, len(reg.Requirements)),
	}

	// Requirements live in a map; iterate sorted so results and logs are
	// deterministic across runs.
	names := make([]string, 0, len(reg.Requirements))
	for name := range reg.Requirements {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cr := e.evaluator.Evaluate(reg.Requirements[name], inputs)
		result.RequirementResults[name] = cr
		if !cr.Met {
			result.RequirementsMet = false
		}
	}

	if !result.RequirementsMet {
		result.Status = RegulationNonCompliant
		result.Penalties = reg.Penalties
	}
	return result
}

// CheckAllRegulations checks regulations in ascending priority order.
func (e *Engine) CheckAllRegulations(regs []Regulation, inputs Inputs) []RegulationResult {
	ordered := make([]Regulation, len(regs))
	copy(ordered, regs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	results := make([]RegulationResult, 0, len(ordered))
	for _, reg := range ordered {
		results = append(results, e.CheckRegulation(reg, inputs))
	}
	return results
}
