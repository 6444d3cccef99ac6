// Package e2e runs the registry's behaviour scenarios against the full HTTP
// stack with in-memory storage and a deterministic calculator.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"carbonregistry/internal/app"
	"carbonregistry/internal/calculator"
	constantsService "carbonregistry/internal/constants/service"
	constantsStore "carbonregistry/internal/constants/store"
	"carbonregistry/internal/counter"
	"carbonregistry/internal/platform/metrics"
	"carbonregistry/internal/platform/middleware"
	projectService "carbonregistry/internal/project/service"
	projectStore "carbonregistry/internal/project/store"
)

// TestContext is the per-scenario state shared by every step package.
type TestContext struct {
	server  *httptest.Server
	client  *http.Client
	actor   string
	credits int64

	lastStatus int
	lastBody   []byte
	// remembered values, for steps such as `the project "first"`
	aliases map[string]string
}

func newTestContext() *TestContext {
	tc := &TestContext{client: &http.Client{}, aliases: map[string]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	constants := constantsService.New(constantsStore.NewInMemory(),
		constantsService.WithLogger(logger),
		constantsService.WithValidator(calculator.ValidateConstants),
	)
	calc := calculator.Func(func(context.Context, calculator.Request) (int64, error) {
		if tc.credits <= 0 {
			return 0, fmt.Errorf("calculator returned no credits")
		}
		return tc.credits, nil
	})
	ledger := projectService.New(projectStore.NewInMemory(), counter.NewInMemory(), constants, calc,
		projectService.WithLogger(logger),
		projectService.WithMetrics(m),
	)
	tc.server = httptest.NewServer(app.Router(app.Deps{
		Logger:    logger,
		Metrics:   m,
		Gatherer:  reg,
		Ledger:    ledger,
		Constants: constants,
	}))
	return tc
}

func (tc *TestContext) Close() { tc.server.Close() }

func (tc *TestContext) SetActor(actor string)      { tc.actor = actor }
func (tc *TestContext) SetCredits(credits int64)   { tc.credits = credits }
func (tc *TestContext) Remember(alias, v string)   { tc.aliases[alias] = v }
func (tc *TestContext) Recall(alias string) string { return tc.aliases[alias] }

func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.server.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.actor != "" {
		req.Header.Set(middleware.HeaderActorID, tc.actor)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) Status() int { return tc.lastStatus }

func (tc *TestContext) Body() []byte { return tc.lastBody }

// Field reads a top-level field of the last JSON object response.
func (tc *TestContext) Field(name string) (any, error) {
	var doc map[string]any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := doc[name]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", name, tc.lastBody)
	}
	return v, nil
}
