package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// errAuthExpired is returned for any 401. It is handled globally (stored
// credentials cleared, back to the login screen) and never reaches the
// pipeline as a domain error.
var errAuthExpired = errors.New("authentication expired")

// apiClient talks to the codechat backend. All authenticated requests carry
// the bearer token; bodies are JSON except the multipart project upload.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// apiDetail is the backend's error envelope.
type apiDetail struct {
	Detail string `json:"detail"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, path, out)
}

func (c *apiClient) send(req *http.Request, path string, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	// 401 on an authenticated call means the token is gone; a 401 from
	// login/signup is an ordinary failure with a detail message.
	if resp.StatusCode == http.StatusUnauthorized && req.Header.Get("Authorization") != "" {
		return errAuthExpired
	}
	if resp.StatusCode >= 300 {
		var detail apiDetail
		if json.Unmarshal(raw, &detail) == nil && strings.TrimSpace(detail.Detail) != "" {
			return fmt.Errorf("%s %d: %s", path, resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("%s %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *apiClient) listSessions(ctx context.Context) ([]session, error) {
	var raw []wireSession
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &raw); err != nil {
		return nil, err
	}
	return normalizeSessions(raw), nil
}

func (c *apiClient) listProjectSessions(ctx context.Context, projectID int64) ([]session, error) {
	var raw []wireSession
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sessions/projects/%d", projectID), nil, &raw); err != nil {
		return nil, err
	}
	return normalizeSessions(raw), nil
}

// createSession makes an unnamed session. projectID 0 sends project_id null
// so the session is created orphaned.
func (c *apiClient) createSession(ctx context.Context, projectID, userID int64) (session, error) {
	body := struct {
		Title     *string          `json:"title"`
		ProjectID jsonNumberOrNull `json:"project_id"`
		UserID    int64            `json:"user_id"`
	}{Title: nil, ProjectID: jsonNumberOrNull(projectID), UserID: userID}

	var raw wireSession
	if err := c.do(ctx, http.MethodPost, "/sessions", body, &raw); err != nil {
		return session{}, err
	}
	return raw.normalize()
}

func (c *apiClient) renameSession(ctx context.Context, id int64, title string) (session, error) {
	body := struct {
		Title string `json:"title"`
	}{Title: title}

	var raw wireSession
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/sessions/%d", id), body, &raw); err != nil {
		return session{}, err
	}
	return raw.normalize()
}

// attachSessionProject moves a session under a project. The trailing slash
// matches the backend route.
func (c *apiClient) attachSessionProject(ctx context.Context, id, projectID int64) (session, error) {
	body := struct {
		ProjectID int64 `json:"project_id"`
	}{ProjectID: projectID}

	var raw wireSession
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/sessions/%d/", id), body, &raw); err != nil {
		return session{}, err
	}
	return raw.normalize()
}

func (c *apiClient) deleteSession(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/sessions/%d", id), nil, nil)
}

func (c *apiClient) listMessages(ctx context.Context, sessionID int64) ([]chatMessage, error) {
	var raw []wireMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/messages/%d", sessionID), nil, &raw); err != nil {
		return nil, err
	}
	return normalizeMessages(raw), nil
}

func (c *apiClient) sendMessage(ctx context.Context, msg outgoingMessage) (sendReply, error) {
	var raw struct {
		AIMessage wireMessage `json:"ai_message"`
		Session   wireSession `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/messages", msg, &raw); err != nil {
		return sendReply{}, err
	}

	aiMsg, err := raw.AIMessage.normalize()
	if err != nil {
		return sendReply{}, fmt.Errorf("send reply: %w", err)
	}
	sess, err := raw.Session.normalize()
	if err != nil {
		return sendReply{}, fmt.Errorf("send reply: %w", err)
	}
	return sendReply{aiMessage: aiMsg, session: sess}, nil
}

func (c *apiClient) listProjects(ctx context.Context) ([]project, error) {
	var raw struct {
		Projects []wireProject `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/list", nil, &raw); err != nil {
		return nil, err
	}

	projects := make([]project, 0, len(raw.Projects))
	for _, w := range raw.Projects {
		p, err := w.normalize()
		if err != nil {
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// uploadProject creates a project from a local zip archive.
func (c *apiClient) uploadProject(ctx context.Context, name, zipPath string) (project, error) {
	file, err := os.Open(zipPath)
	if err != nil {
		return project{}, fmt.Errorf("open project archive %q: %w", zipPath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("upload", filepath.Base(zipPath))
	if err != nil {
		return project{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return project{}, fmt.Errorf("read project archive %q: %w", zipPath, err)
	}
	if err := form.WriteField("project_name", name); err != nil {
		return project{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return project{}, fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/projects/upload", &buf)
	if err != nil {
		return project{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var raw struct {
		Project wireProject `json:"project"`
	}
	if err := c.send(req, "/projects/upload", &raw); err != nil {
		return project{}, err
	}
	return raw.Project.normalize()
}

// cloneProject creates a project from a git repository URL.
func (c *apiClient) cloneProject(ctx context.Context, name, repoURL string) (project, error) {
	body := struct {
		RepoURL     string `json:"repo_url"`
		ProjectName string `json:"project_name"`
	}{RepoURL: repoURL, ProjectName: name}

	var raw struct {
		Project wireProject `json:"project"`
	}
	if err := c.do(ctx, http.MethodPost, "/projects/clone", body, &raw); err != nil {
		return project{}, err
	}
	return raw.Project.normalize()
}

func (c *apiClient) deleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", id), nil, nil)
}

// authState is the persisted login result, the client-side analog of the
// browser's local storage: populated at login, cleared at logout, read-only
// everywhere else.
type authState struct {
	Token string      `json:"access_token"`
	User  userAccount `json:"user"`
}

func (c *apiClient) login(ctx context.Context, username, password string) (authState, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	var state authState
	if err := c.do(ctx, http.MethodPost, "/login", body, &state); err != nil {
		return authState{}, err
	}
	if strings.TrimSpace(state.Token) == "" {
		return authState{}, errors.New("login response missing access_token")
	}
	return state, nil
}

func (c *apiClient) signup(ctx context.Context, username, email, password string) (string, error) {
	body := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Username: username, Email: email, Password: password}

	var reply struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/signup", body, &reply); err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.Message) == "" {
		return "Signup successful! You can now log in.", nil
	}
	return reply.Message, nil
}
