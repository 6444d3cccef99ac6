package project

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cucumber/godog"
)

type TestContext interface {
	SetCredits(credits int64)
	Do(method, path string, body any) error
	Field(name string) (any, error)
	Remember(alias, value string)
	Recall(alias string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &projectSteps{tc: tc}

	ctx.Step(`^the calculator awards (\d+) credits$`, s.calculatorAwards)
	ctx.Step(`^I register an? (agriculture|solar) project in "([^"]*)" scope "([^"]*)" starting "([^"]*)"$`, s.register)
	ctx.Step(`^I remember the project as "([^"]*)"$`, s.rememberProject)
	ctx.Step(`^I move project "([^"]*)" from "([^"]*)" to "([^"]*)"$`, s.move)
	ctx.Step(`^I read project "([^"]*)"$`, s.read)
	ctx.Step(`^I read the history of project "([^"]*)"$`, s.history)
	ctx.Step(`^I list projects with status "([^"]*)"$`, s.listByStatus)
}

type projectSteps struct {
	tc TestContext
}

func (s *projectSteps) calculatorAwards(_ context.Context, credits int64) error {
	s.tc.SetCredits(credits)
	return nil
}

func (s *projectSteps) register(_ context.Context, kind, country, scope, start string) error {
	begin, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	body := map[string]any{
		"title":         kind + " project",
		"countryCodeA2": country,
		"sectoralScope": scope,
		"startTime":     begin.Unix(),
		"endTime":       begin.AddDate(0, 1, 0).Unix(),
	}
	switch kind {
	case "agriculture":
		body["subDomain"] = "AGRICULTURE"
		body["agricultureProperties"] = map[string]any{"landArea": 40, "landAreaUnit": "ha"}
	case "solar":
		body["subDomain"] = "SOLAR"
		body["solarProperties"] = map[string]any{
			"energyGeneration":     1200,
			"energyGenerationUnit": "kWh",
			"consumerGroup":        "Household",
		}
	}
	return s.tc.Do(http.MethodPost, "/projects", body)
}

func (s *projectSteps) rememberProject(_ context.Context, alias string) error {
	v, err := s.tc.Field("projectId")
	if err != nil {
		return err
	}
	s.tc.Remember(alias, fmt.Sprint(v))
	return nil
}

func (s *projectSteps) projectID(alias string) (string, error) {
	if id := s.tc.Recall(alias); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no project remembered as %q", alias)
}

func (s *projectSteps) move(_ context.Context, alias, from, to string) error {
	id, err := s.projectID(alias)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/projects/"+id+"/status", map[string]string{
		"expectedStatus": from,
		"status":         to,
	})
}

func (s *projectSteps) read(_ context.Context, alias string) error {
	id, err := s.projectID(alias)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodGet, "/projects/"+id, nil)
}

func (s *projectSteps) history(_ context.Context, alias string) error {
	id, err := s.projectID(alias)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodGet, "/projects/"+id+"/history", nil)
}

func (s *projectSteps) listByStatus(_ context.Context, status string) error {
	return s.tc.Do(http.MethodGet, "/projects?status="+url.QueryEscape(status), nil)
}
