// internal/workers/checklist/resolve-rules/evaluator.go
package resolverules

import (
	"fmt"
	"sync"

	"visabuddy-engine/internal/models"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Evaluator compiles and runs rule applicability conditions. Programs are
// cached per expression since the same rule set is evaluated for many
// applicants.
type Evaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("sponsor_type", cel.StringType),
		cel.Variable("employment_status", cel.StringType),
		cel.Variable("education_status", cel.StringType),
		cel.Variable("marital_status", cel.StringType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("financial_ratio", cel.DoubleType),
		cel.Variable("ties_score", cel.DoubleType),
		cel.Variable("age", cel.IntType),
		cel.Variable("duration_days", cel.IntType),
		cel.Variable("employment_months", cel.IntType),
		cel.Variable("countries_visited", cel.IntType),
		cel.Variable("previous_rejections", cel.IntType),
		cel.Variable("has_children", cel.BoolType),
		cel.Variable("has_invitation", cel.BoolType),
		cel.Variable("owns_property", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create condition environment: %w", err)
	}

	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate runs a condition against the applicant activation. The expression
// must produce a boolean.
func (e *Evaluator) Evaluate(condition string, activation map[string]interface{}) (bool, error) {
	program, err := e.program(condition)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", condition, err)
	}

	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("condition %q produced %s, want bool", condition, out.Type())
	}
	return bool(b), nil
}

func (e *Evaluator) program(condition string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[condition]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", condition, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition %q produces %s, want bool", condition, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for %q: %w", condition, err)
	}

	e.mu.Lock()
	e.programs[condition] = program
	e.mu.Unlock()

	return program, nil
}

// Activation flattens the canonical context into the variables conditions
// may reference. Unknown tri-state answers evaluate as false so that a
// condition alone never asserts a fact the applicant did not provide; the
// safe default path covers the cases where that matters.
func Activation(ctx *models.CanonicalContext) map[string]interface{} {
	return map[string]interface{}{
		"sponsor_type":        ctx.Identity.SponsorType,
		"employment_status":   ctx.Identity.EmploymentStatus,
		"education_status":    ctx.Identity.EducationStatus,
		"marital_status":      ctx.Identity.MaritalStatus,
		"risk_level":          ctx.Risk.Level,
		"financial_ratio":     ctx.Financial.SufficiencyRatio,
		"ties_score":          ctx.Ties.Score,
		"age":                 ctx.Identity.Age,
		"duration_days":       ctx.Intent.DurationDays,
		"employment_months":   ctx.Identity.EmploymentMonths,
		"countries_visited":   ctx.TravelHistory.CountriesVisited,
		"previous_rejections": ctx.TravelHistory.PreviousRejections,
		"has_children":        ctx.Identity.HasChildren.Bool(false),
		"has_invitation":      ctx.Intent.HasInvitation.Bool(false),
		"owns_property":       ctx.Ties.OwnsProperty.Bool(false),
	}
}
