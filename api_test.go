package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func fakeClient(t *testing.T, handler func(*http.Request) (*http.Response, error)) *apiClient {
	t.Helper()
	c := newAPIClient("http://backend.test/api", "tok-123")
	c.http.Transport = roundTripFunc(handler)
	return c
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestListSessionsSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		return jsonResponse(200, `[{"id": 5, "title": null, "project_id": null}]`), nil
	})

	sessions, err := c.listSessions(context.Background())
	if err != nil {
		t.Fatalf("listSessions: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/api/sessions" {
		t.Errorf("path = %q", gotPath)
	}
	if len(sessions) != 1 || sessions[0].id != 5 || sessions[0].title != "" || sessions[0].projectID != 0 {
		t.Errorf("null fields should normalize to zero values, got %+v", sessions)
	}
}

func TestAuthenticated401BecomesAuthExpired(t *testing.T) {
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"detail": "Could not validate credentials"}`), nil
	})

	_, err := c.listSessions(context.Background())
	if !errors.Is(err, errAuthExpired) {
		t.Fatalf("expected errAuthExpired, got %v", err)
	}
}

func TestLogin401KeepsDetailMessage(t *testing.T) {
	c := newAPIClient("http://backend.test/api", "")
	c.http.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"detail": "Incorrect username or password"}`), nil
	})

	_, err := c.login(context.Background(), "alice", "wrong")
	if errors.Is(err, errAuthExpired) {
		t.Fatalf("login 401 must not be treated as an expired token")
	}
	if err == nil || !strings.Contains(err.Error(), "Incorrect username or password") {
		t.Fatalf("expected detail message in error, got %v", err)
	}
}

func TestErrorDetailEnvelope(t *testing.T) {
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(422, `{"detail": "title must not be empty"}`), nil
	})

	_, err := c.renameSession(context.Background(), 3, "")
	if err == nil || !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected detail message surfaced, got %v", err)
	}
}

func TestCreateSessionSendsNullTitleAndProject(t *testing.T) {
	var gotBody string
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		return jsonResponse(200, `{"id": 9, "title": null, "project_id": null}`), nil
	})

	sess, err := c.createSession(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("createSession: %v", err)
	}
	if sess.id != 9 {
		t.Errorf("session id = %d", sess.id)
	}
	if !strings.Contains(gotBody, `"title":null`) {
		t.Errorf("body should carry explicit null title: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"project_id":null`) {
		t.Errorf("orphaned creation should send project_id null: %s", gotBody)
	}
}

func TestCreateSessionUnderProjectSendsID(t *testing.T) {
	var gotBody string
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		return jsonResponse(200, `{"id": 9, "title": null, "project_id": 7}`), nil
	})

	sess, err := c.createSession(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("createSession: %v", err)
	}
	if sess.projectID != 7 {
		t.Errorf("projectID = %d", sess.projectID)
	}
	if !strings.Contains(gotBody, `"project_id":7`) {
		t.Errorf("body should carry the project id: %s", gotBody)
	}
}

func TestSendMessageDecodesReply(t *testing.T) {
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/messages" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		return jsonResponse(200, `{
			"ai_message": {"id": 42, "session_id": 5, "sender_type": "ai", "content": "hi there", "model_used": "claude"},
			"session": {"id": 5, "title": "greetings", "project_id": null}
		}`), nil
	})

	reply, err := c.sendMessage(context.Background(), outgoingMessage{SessionID: 5, SenderType: "user", Content: "hi", ModelUsed: "claude"})
	if err != nil {
		t.Fatalf("sendMessage: %v", err)
	}
	if reply.aiMessage.id != "42" || reply.aiMessage.senderType != "ai" {
		t.Errorf("ai message = %+v", reply.aiMessage)
	}
	if reply.aiMessage.status != deliveryConfirmed {
		t.Errorf("server message should arrive confirmed")
	}
	if reply.session.id != 5 || reply.session.title != "greetings" {
		t.Errorf("session = %+v", reply.session)
	}
}

func TestListProjectsUnwrapsEnvelope(t *testing.T) {
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/projects/list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		return jsonResponse(200, `{"projects": [{"id": 7, "name": "api"}, {"id": 8, "name": null}]}`), nil
	})

	projects, err := c.listProjects(context.Background())
	if err != nil {
		t.Fatalf("listProjects: %v", err)
	}
	// The nameless record is malformed and dropped.
	if len(projects) != 1 || projects[0].name != "api" {
		t.Errorf("projects = %+v", projects)
	}
}

func TestUploadProjectMultipartFields(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "code.zip")
	if err := os.WriteFile(zipPath, []byte("PK fake zip"), 0644); err != nil {
		t.Fatal(err)
	}

	var gotContentType string
	var gotBody []byte
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		return jsonResponse(200, `{"project": {"id": 3, "name": "myproj"}}`), nil
	})

	proj, err := c.uploadProject(context.Background(), "myproj", zipPath)
	if err != nil {
		t.Fatalf("uploadProject: %v", err)
	}
	if proj.id != 3 || proj.name != "myproj" {
		t.Errorf("project = %+v", proj)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	body := string(gotBody)
	if !strings.Contains(body, `name="upload"; filename="code.zip"`) {
		t.Errorf("missing upload file part:\n%s", body)
	}
	if !strings.Contains(body, `name="project_name"`) || !strings.Contains(body, "myproj") {
		t.Errorf("missing project_name field:\n%s", body)
	}
}

func TestAttachSessionUsesTrailingSlash(t *testing.T) {
	var gotPath string
	c := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		return jsonResponse(200, `{"id": 5, "title": null, "project_id": 7}`), nil
	})

	sess, err := c.attachSessionProject(context.Background(), 5, 7)
	if err != nil {
		t.Fatalf("attachSessionProject: %v", err)
	}
	if gotPath != "/api/sessions/5/" {
		t.Errorf("path = %q", gotPath)
	}
	if sess.projectID != 7 {
		t.Errorf("projectID = %d", sess.projectID)
	}
}

func TestLoginRejectsMissingToken(t *testing.T) {
	c := newAPIClient("http://backend.test/api", "")
	c.http.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"user": {"id": 1, "username": "alice"}}`), nil
	})

	if _, err := c.login(context.Background(), "alice", "pw"); err == nil {
		t.Fatal("expected error for response without access_token")
	}
}
