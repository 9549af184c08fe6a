// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/require"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile(filepath.Join("..", "..", "docs", "openapi.yaml"))
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

// validateAgainstSpec serves the request through the full router and
// checks the response against the published contract.
func validateAgainstSpec(t *testing.T, env *testEnv, method, path string, body any, wantStatus int) []byte {
	t.Helper()

	doc := loadOpenAPIDoc(t)
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	env.srv.Routes().ServeHTTP(rr, req)
	require.Equal(t, wantStatus, rr.Code, "body: %s", rr.Body.String())

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup for %s %s", method, path)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rr.Code,
		Header: rr.Header(),
	}
	input.SetBodyBytes(rr.Body.Bytes())
	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input),
		"openapi response validation for %s %s", method, path)

	return rr.Body.Bytes()
}

func TestContract_SpecIsValid(t *testing.T) {
	loadOpenAPIDoc(t)
}

func TestContract_CoreEndpoints(t *testing.T) {
	env := newTestEnv(t)

	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/version", nil, http.StatusOK)

	raw := validateAgainstSpec(t, env, http.MethodPost, "/api/v1/students", createStudentRequest{
		ID:      "s1",
		ClassID: "c1",
		Name:    "Ada",
	}, http.StatusCreated)
	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	require.Equal(t, "s1", created["id"])

	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/students/s1", nil, http.StatusOK)
	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/students/ghost", nil, http.StatusNotFound)
	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/classes/c1/students", nil, http.StatusOK)
}

func TestContract_TracingEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedStudent(t, "s1", "c1")
	env.seedConcept(t, "fractions", 0.5)

	validateAgainstSpec(t, env, http.MethodPost, "/api/v1/responses", submitResponseRequest{
		StudentID: "s1",
		ConceptID: "fractions",
		Correct:   true,
	}, http.StatusOK)

	validateAgainstSpec(t, env, http.MethodPost, "/api/v1/engagement/events", map[string]any{
		"studentId": "s1",
		"type":      "login",
	}, http.StatusCreated)

	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/students/s1/mastery", nil, http.StatusOK)
	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/students/s1/mastery/fractions", nil, http.StatusOK)
	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/analytics/overview", nil, http.StatusOK)
}

func TestContract_PollEndpoints(t *testing.T) {
	env := newTestEnv(t)

	raw := validateAgainstSpec(t, env, http.MethodPost, "/api/v1/polls", createPollRequest{
		ClassID:  "c1",
		Question: "Ready?",
		Options:  []string{"yes", "no"},
	}, http.StatusCreated)
	var poll map[string]any
	require.NoError(t, json.Unmarshal(raw, &poll))
	pollID, _ := poll["id"].(string)
	require.NotEmpty(t, pollID)

	validateAgainstSpec(t, env, http.MethodPost, "/api/v1/polls/"+pollID+"/votes",
		voteRequest{StudentID: "s1", OptionIndex: 1}, http.StatusOK)
	validateAgainstSpec(t, env, http.MethodPost, "/api/v1/polls/"+pollID+"/votes",
		voteRequest{StudentID: "s1", OptionIndex: 1}, http.StatusConflict)
	validateAgainstSpec(t, env, http.MethodGet, "/api/v1/polls/"+pollID+"/results", nil, http.StatusOK)
	validateAgainstSpec(t, env, http.MethodPost, "/api/v1/polls/"+pollID+"/close", nil, http.StatusOK)
}
