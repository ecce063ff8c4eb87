package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

type captured struct {
	method, path, query string
	user, pass         string
	body               map[string]any
}

func jiraServer(t *testing.T, status int, respBody string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.user, c.pass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newClient(url, version string) *Client {
	return New(Config{
		BaseURL:    url + "/",
		User:       "soc@example.com",
		Token:      "tok",
		ProjectKey: "SEC",
		IssueType:  "Incident",
		APIVersion: version,
	})
}

func testDraft() *triage.CaseDraft {
	return &triage.CaseDraft{
		Summary:  "[TP ALERT] db-prod-01",
		Priority: "Highest",
		Description: triage.Document{
			{Heading: "AI Report", Body: "line one\nline two"},
			{Heading: "Command", Body: "rm -rf /", Code: true},
		},
		AssigneeID: "acct-1",
	}
}

func TestCreateIssue_V2(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusCreated, `{"id":"1","key":"SEC-42"}`)
	key, err := newClient(srv.URL, "2").CreateIssue(context.Background(), testDraft())
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if key != "SEC-42" {
		t.Errorf("key = %q, want SEC-42", key)
	}
	if c.method != http.MethodPost || c.path != "/rest/api/2/issue" {
		t.Errorf("request = %s %s", c.method, c.path)
	}
	if c.user != "soc@example.com" || c.pass != "tok" {
		t.Errorf("basic auth = %s:%s", c.user, c.pass)
	}

	fields := c.body["fields"].(map[string]any)
	if fields["summary"] != "[TP ALERT] db-prod-01" {
		t.Errorf("summary = %v", fields["summary"])
	}
	if fields["project"].(map[string]any)["key"] != "SEC" {
		t.Errorf("project = %v", fields["project"])
	}
	if fields["issuetype"].(map[string]any)["name"] != "Incident" {
		t.Errorf("issuetype = %v", fields["issuetype"])
	}
	if fields["priority"].(map[string]any)["name"] != "Highest" {
		t.Errorf("priority = %v", fields["priority"])
	}
	if fields["assignee"].(map[string]any)["accountId"] != "acct-1" {
		t.Errorf("assignee = %v", fields["assignee"])
	}
	if _, ok := fields["description"].(string); !ok {
		t.Errorf("v2 description should be a string, got %T", fields["description"])
	}
}

func TestCreateIssue_DefaultsToV3(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusCreated, `{"key":"SEC-8"}`)
	if _, err := newClient(srv.URL, "").CreateIssue(context.Background(), testDraft()); err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if c.path != "/rest/api/3/issue" {
		t.Errorf("path = %s, want /rest/api/3/issue", c.path)
	}
	fields := c.body["fields"].(map[string]any)
	if _, ok := fields["description"].(map[string]any); !ok {
		t.Errorf("default description should be ADF, got %T", fields["description"])
	}
}

func TestCreateIssue_V3UsesADF(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusCreated, `{"key":"SEC-7"}`)
	d := testDraft()
	d.AssigneeID = ""
	if _, err := newClient(srv.URL, "3").CreateIssue(context.Background(), d); err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if c.path != "/rest/api/3/issue" {
		t.Errorf("path = %s", c.path)
	}
	fields := c.body["fields"].(map[string]any)
	if _, ok := fields["assignee"]; ok {
		t.Error("unassigned draft must not send assignee")
	}
	desc, ok := fields["description"].(map[string]any)
	if !ok {
		t.Fatalf("v3 description should be an object, got %T", fields["description"])
	}
	if desc["type"] != "doc" || desc["version"] != float64(1) {
		t.Errorf("doc = %v", desc)
	}
	content := desc["content"].([]any)
	var types []string
	for _, n := range content {
		types = append(types, n.(map[string]any)["type"].(string))
	}
	want := []string{"heading", "paragraph", "heading", "codeBlock"}
	if len(types) != len(want) {
		t.Fatalf("node types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("node[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestCreateIssue_NonCreatedIsError(t *testing.T) {
	t.Parallel()

	srv, _ := jiraServer(t, http.StatusOK, `{"key":"SEC-1"}`)
	_, err := newClient(srv.URL, "2").CreateIssue(context.Background(), testDraft())
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusOK {
		t.Fatalf("err = %v, want StatusError 200", err)
	}
}

func TestAddComment(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusCreated, `{"id":"100"}`)
	err := newClient(srv.URL, "2").AddComment(context.Background(), "SEC-42", triage.Document{{Body: "again"}})
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.path != "/rest/api/2/issue/SEC-42/comment" {
		t.Errorf("path = %s", c.path)
	}
	if c.body["body"] != "again" {
		t.Errorf("body = %v", c.body["body"])
	}
}

func TestTransition(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusNoContent, "")
	if err := newClient(srv.URL, "2").Transition(context.Background(), "SEC-42", "31"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if c.path != "/rest/api/2/issue/SEC-42/transitions" {
		t.Errorf("path = %s", c.path)
	}
	if c.body["transition"].(map[string]any)["id"] != "31" {
		t.Errorf("body = %v", c.body)
	}
}

func TestTransition_Rejected(t *testing.T) {
	t.Parallel()

	srv, _ := jiraServer(t, http.StatusBadRequest, `{"errorMessages":["bad transition"]}`)
	if err := newClient(srv.URL, "2").Transition(context.Background(), "SEC-42", "99"); err == nil {
		t.Fatal("expected error")
	}
}

func TestListTransitions(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusOK, `{"transitions":[{"id":"11","name":"Start","to":{"name":"In Progress"}},{"id":"31","name":"Archive","to":{"name":"Done"}}]}`)
	ts, err := newClient(srv.URL, "2").ListTransitions(context.Background(), "KAN-60")
	if err != nil {
		t.Fatalf("ListTransitions: %v", err)
	}
	if c.method != http.MethodGet {
		t.Errorf("method = %s", c.method)
	}
	if len(ts) != 2 || ts[1].ID != "31" || ts[1].To.Name != "Done" {
		t.Errorf("transitions = %+v", ts)
	}
}

func TestSearchUsers(t *testing.T) {
	t.Parallel()

	srv, c := jiraServer(t, http.StatusOK, `[{"accountId":"5b10a","displayName":"On Call","active":true}]`)
	users, err := newClient(srv.URL, "2").SearchUsers(context.Background(), "oncall@example.com")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if c.path != "/rest/api/2/user/search" || c.query != "query=oncall%40example.com" {
		t.Errorf("request = %s?%s", c.path, c.query)
	}
	if len(users) != 1 || users[0].AccountID != "5b10a" {
		t.Errorf("users = %+v", users)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{BaseURL: "https://x.atlassian.net", User: "u", Token: "t"}, false},
		{"no url", Config{User: "u", Token: "t"}, true},
		{"no token", Config{BaseURL: "https://x", User: "u"}, true},
		{"bad version", Config{BaseURL: "https://x", User: "u", Token: "t", APIVersion: "4"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToADF_Paragraph(t *testing.T) {
	t.Parallel()

	p := paragraph("a\n\nb")
	var types []string
	for _, n := range p.Content {
		types = append(types, n.Type)
	}
	// a, break, break, b
	if len(types) != 4 || types[0] != "text" || types[1] != "hardBreak" || types[2] != "hardBreak" || types[3] != "text" {
		t.Errorf("paragraph nodes = %v", types)
	}
}
