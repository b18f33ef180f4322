package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name  string
		input StepUpInput
		want  bool
	}{
		{"org admin requires step-up", StepUpInput{Role: "org_admin", Env: "production"}, true},
		{"owner requires step-up", StepUpInput{Role: "owner", Env: "production"}, true},
		{"service account exempt", StepUpInput{Role: "service_account", Env: "production"}, false},
		{"readonly exempt outside production", StepUpInput{Role: "readonly", Env: "development"}, false},
		{"readonly requires step-up in production", StepUpInput{Role: "readonly", Env: "production"}, true},
		{"unknown role fails toward requiring", StepUpInput{Role: "something_new", Env: "production"}, true},
		{"empty role fails toward requiring", StepUpInput{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateStepUp(ctx, tt.input)
			if err != nil {
				t.Fatalf("EvaluateStepUp: %v", err)
			}
			if got.Required != tt.want {
				t.Errorf("Required = %v, want %v", got.Required, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	src := `package stepup.access

default step_up_required = true

step_up_required = false if {
	input.role == "auditor"
}
`
	e, err := NewOPAEvaluator(src)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	got, err := e.EvaluateStepUp(context.Background(), StepUpInput{Role: "auditor"})
	if err != nil {
		t.Fatalf("EvaluateStepUp: %v", err)
	}
	if got.Required {
		t.Error("custom policy exemption not honored")
	}
}

func TestOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator("package broken\nthis is not rego"); err == nil {
		t.Error("invalid policy source should fail to compile")
	}
}
