package constants

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

type TestContext interface {
	Do(method, path string, body any) error
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &constantsSteps{tc: tc}

	ctx.Step(`^I publish (agriculture|solar) constants:$`, s.publish)
	ctx.Step(`^I read the latest (agriculture|solar) constants$`, s.latest)
	ctx.Step(`^I read (agriculture|solar) constants version (\d+)$`, s.version)
	ctx.Step(`^I list (agriculture|solar) constants versions$`, s.versions)
}

type constantsSteps struct {
	tc TestContext
}

func path(kind string) string {
	return "/constants/" + strings.ToUpper(kind)
}

func (s *constantsSteps) publish(_ context.Context, kind string, doc *godog.DocString) error {
	return s.tc.Do(http.MethodPut, path(kind), doc.Content)
}

func (s *constantsSteps) latest(_ context.Context, kind string) error {
	return s.tc.Do(http.MethodGet, path(kind), nil)
}

func (s *constantsSteps) version(_ context.Context, kind string, number int) error {
	return s.tc.Do(http.MethodGet, fmt.Sprintf("%s?version=%d", path(kind), number), nil)
}

func (s *constantsSteps) versions(_ context.Context, kind string) error {
	return s.tc.Do(http.MethodGet, path(kind)+"/versions", nil)
}
