package e2e

import (
	"github.com/cucumber/godog"

	"carbonregistry/e2e/steps/common"
	"carbonregistry/e2e/steps/constants"
	"carbonregistry/e2e/steps/project"
)

// RegisterSteps wires every step package to one scenario's context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	project.RegisterSteps(ctx, tc)
	constants.RegisterSteps(ctx, tc)
}
