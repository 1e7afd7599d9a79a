package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ana-research/canvas/pkg/agent"
	"github.com/ana-research/canvas/pkg/controller"
	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/server"
	"github.com/ana-research/canvas/pkg/session"
	"github.com/ana-research/canvas/pkg/storage/memory"
)

func setup(t *testing.T) (*httptest.Server, *controller.Controller) {
	t.Helper()
	sessions, err := session.NewManager(context.Background(), memory.New())
	if err != nil {
		t.Fatal(err)
	}

	conn := agent.NewOffline()
	ctrl := controller.New(sessions, conn)

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Start(ctx)

	ts := httptest.NewServer(server.New(ctrl).Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		conn.Close()
	})
	return ts, ctrl
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) domain.Session {
	t.Helper()
	defer resp.Body.Close()
	var sess domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestCreateAndListSessions(t *testing.T) {
	ts, _ := setup(t)

	resp := doJSON(t, "POST", ts.URL+"/api/sessions", map[string]string{"title": "My Research"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeSession(t, resp)
	if created.Title != "My Research" {
		t.Errorf("title = %q", created.Title)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/sessions", nil)
	defer resp.Body.Close()
	var list []domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list mismatch: %+v", list)
	}
}

func TestGetRenameDelete(t *testing.T) {
	ts, _ := setup(t)

	created := decodeSession(t, doJSON(t, "POST", ts.URL+"/api/sessions", nil))

	resp := doJSON(t, "GET", ts.URL+"/api/sessions/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	renamed := decodeSession(t, doJSON(t, "PUT", ts.URL+"/api/sessions/"+created.ID,
		map[string]string{"title": "Renamed"}))
	if renamed.Title != "Renamed" {
		t.Errorf("rename not applied: %q", renamed.Title)
	}

	resp = doJSON(t, "DELETE", ts.URL+"/api/sessions/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", ts.URL+"/api/sessions/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted session still served: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestActivateAndActive(t *testing.T) {
	ts, _ := setup(t)

	a := decodeSession(t, doJSON(t, "POST", ts.URL+"/api/sessions", map[string]string{"title": "A"}))
	decodeSession(t, doJSON(t, "POST", ts.URL+"/api/sessions", map[string]string{"title": "B"}))

	resp := doJSON(t, "POST", ts.URL+"/api/sessions/"+a.ID+"/activate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
	active := decodeSession(t, resp)
	if active.ID != a.ID {
		t.Errorf("activated wrong session: %q", active.ID)
	}

	got := decodeSession(t, doJSON(t, "GET", ts.URL+"/api/active", nil))
	if got.ID != a.ID {
		t.Errorf("active endpoint mismatch: %q", got.ID)
	}

	resp = doJSON(t, "DELETE", ts.URL+"/api/active", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", ts.URL+"/api/active", nil)
	defer resp.Body.Close()
	var raw json.RawMessage
	json.NewDecoder(resp.Body).Decode(&raw)
	if string(raw) != "null" {
		t.Errorf("expected null active, got %s", raw)
	}
}

func TestActivateMissingSession(t *testing.T) {
	ts, _ := setup(t)
	resp := doJSON(t, "POST", ts.URL+"/api/sessions/ghost/activate", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestInvokeWithoutAgent(t *testing.T) {
	ts, _ := setup(t)
	resp := doJSON(t, "POST", ts.URL+"/api/invoke", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("invoke without agent should 503, got %d", resp.StatusCode)
	}
}
