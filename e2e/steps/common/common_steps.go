package common

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario state these steps need.
type TestContext interface {
	SetActor(actor string)
	Status() int
	Body() []byte
	Field(name string) (any, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &commonSteps{tc: tc}

	ctx.Step(`^I am registry officer "([^"]*)"$`, s.actAs)
	ctx.Step(`^I am anonymous$`, s.anonymous)
	ctx.Step(`^the response status should be (\d+)$`, s.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, s.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.fieldShouldBe)
	ctx.Step(`^the response should list (\d+) items?$`, s.shouldList)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) actAs(_ context.Context, actor string) error {
	s.tc.SetActor(actor)
	return nil
}

func (s *commonSteps) anonymous(context.Context) error {
	s.tc.SetActor("")
	return nil
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBe(ctx, "error", want)
}

func (s *commonSteps) fieldShouldBe(_ context.Context, name, want string) error {
	v, err := s.tc.Field(name)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", name, want, got)
	}
	return nil
}

func (s *commonSteps) shouldList(_ context.Context, want int) error {
	var items []json.RawMessage
	if err := json.Unmarshal(s.tc.Body(), &items); err != nil {
		// paged listings wrap items in "data"
		var page struct {
			Data []json.RawMessage `json:"data"`
		}
		if pageErr := json.Unmarshal(s.tc.Body(), &page); pageErr != nil {
			return fmt.Errorf("response is not a list: %s", s.tc.Body())
		}
		items = page.Data
	}
	if len(items) != want {
		return fmt.Errorf("expected %d items, got %d: %s", want, len(items), s.tc.Body())
	}
	return nil
}
