package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.stepup.access.step_up_required"

// Default Rego policy: privileged human roles always require step-up,
// service accounts are exempt, and anything unrecognized requires it.
// The default is the safe direction; a policy evaluation that cannot
// decide must never admit without a second factor.
const defaultRegoPolicy = `package stepup.access

default step_up_required = true

step_up_required = false if {
	input.role == "service_account"
}

step_up_required = false if {
	input.role == "readonly"
	input.env != "production"
}
`

// OPAEvaluator evaluates the step-up requirement with OPA Rego.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles the policy and returns an evaluator. policySource
// may be empty to use the built-in default.
func NewOPAEvaluator(policySource string) (*OPAEvaluator, error) {
	if policySource == "" {
		policySource = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"stepup_access.rego": policySource})
	if err != nil {
		return nil, fmt.Errorf("compile step-up policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies the compiled policy evaluates for a minimal input.
// Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, StepUpInput{Role: "org_admin", Env: "production"})
	return err
}

// EvaluateStepUp runs the policy for the given input. On evaluation failure it
// returns Required=true alongside the error: an unavailable policy engine must
// not read as "no second factor needed".
func (e *OPAEvaluator) EvaluateStepUp(ctx context.Context, input StepUpInput) (StepUpResult, error) {
	required, err := e.eval(ctx, input)
	if err != nil {
		log.Printf("policy: step-up evaluation failed, requiring step-up: %v", err)
		return StepUpResult{Required: true}, err
	}
	return StepUpResult{Required: required}, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input StepUpInput) (bool, error) {
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(e.compiler),
		rego.Input(map[string]interface{}{
			"role": input.Role,
			"env":  input.Env,
		}),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return true, fmt.Errorf("eval step-up policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return true, fmt.Errorf("step-up policy query returned no result")
	}
	required, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return true, fmt.Errorf("step-up policy returned non-boolean %T", rs[0].Expressions[0].Value)
	}
	return required, nil
}
