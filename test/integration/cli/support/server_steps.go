package support

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/notely/internal/server"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper wraps an in-process notely server and its store.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	store      *store.Store
}

// Close stops the HTTP server and releases the store.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
	_ = w.TestServer.Close()
	_ = w.store.Close()
}

// theNotelyServerIsRunning starts a read-only server on the scenario database.
func (testCtx *TestContext) theNotelyServerIsRunning() error {
	st, err := store.Open(context.Background(), testCtx.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	srv, err := server.NewServer(server.Config{CORSOrigin: "*", TimeoutSec: 10}, st, nil, nil)
	if err != nil {
		_ = st.Close()
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
		store:      st,
	}
	return nil
}

func (testCtx *TestContext) doRequest(method, path string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	url := testCtx.HTTPTestServer.Server.URL + testCtx.substituteCommandVariables(path)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	return testCtx.doRequest(http.MethodGet, path)
}

func (testCtx *TestContext) iSendADELETERequestTo(path string) error {
	return testCtx.doRequest(http.MethodDelete, path)
}

func (testCtx *TestContext) iSendAPOSTRequestTo(path string) error {
	return testCtx.doRequest(http.MethodPost, path)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response unexpectedly contains '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// theJSONFieldShouldBe compares a top-level JSON field with its printed value.
func (testCtx *TestContext) theJSONFieldShouldBe(field, value string) error {
	var body map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &body); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return fmt.Errorf("response has no field %q\nBody: %s", field, testCtx.LastHTTPResponse)
	}
	if got := fmt.Sprint(v); got != value {
		return fmt.Errorf("field %q is %s, want %s", field, got, value)
	}
	return nil
}

// RegisterServerSteps registers the HTTP server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the notely server is running$`, testCtx.theNotelyServerIsRunning)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I send a DELETE request to "([^"]*)"$`, testCtx.iSendADELETERequestTo)
	sc.Step(`^I send a POST request to "([^"]*)"$`, testCtx.iSendAPOSTRequestTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should not contain "([^"]*)"$`, testCtx.theResponseShouldNotContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
}
