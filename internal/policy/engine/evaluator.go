package engine

import "context"

// StepUpInput is the context a step-up requirement decision is made from.
type StepUpInput struct {
	// Role is the role claim from the access token (e.g. org_admin, owner).
	Role string
	// Env is the application environment (development, production).
	Env string
}

// StepUpResult holds the result of step-up policy evaluation.
type StepUpResult struct {
	Required bool
}

// Evaluator decides whether a role requires step-up before the privileged
// surface is admitted. Implementations must fail toward requiring step-up.
type Evaluator interface {
	EvaluateStepUp(ctx context.Context, input StepUpInput) (StepUpResult, error)
}
