package gate

import (
	"github.com/sokinpui/changegate/internal/plan"
	"github.com/sokinpui/changegate/model"
)

// Validate checks a raw change set against root with default settings. raw
// is normalized in place.
func Validate(raw model.RawChangeSet, root string) (bool, []string) {
	ok, errs, err := New(root, nil, nil).Validate(raw)
	if err != nil {
		return false, []string{err.Error()}
	}
	return ok, model.Messages(errs)
}

// Apply applies a validated change set under root with default settings.
func Apply(set model.ChangeSet, root string) model.ApplyResult {
	result, _, _ := New(root, nil, nil).Apply(set)
	return result
}

// ExtractRequirements reads the plan at planPath and lists what it promises.
func ExtractRequirements(planPath string) (model.PlanRequirements, error) {
	return plan.ExtractRequirementsFile(planPath)
}

// CheckCoverage reports which requirements of the plan at planPath are not
// yet present under root.
func CheckCoverage(planPath, root string) (model.CoverageReport, error) {
	return New(root, nil, nil).Coverage(planPath)
}
