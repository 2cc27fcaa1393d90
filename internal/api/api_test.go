package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("GET /v1/health is public", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodGet, "/v1/health", nil, nil)
		assertStatus(t, w, http.StatusOK)
	})

	token, uid := signup(t, env, "alice@example.com", "Alice")

	t.Run("POST /v1/auth/signup duplicate email", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/auth/signup", map[string]string{
			"email": "ALICE@example.com", "password": "secret1",
		}, nil)
		assertErrorCode(t, w, http.StatusConflict, "CONFLICT")
	})

	t.Run("POST /v1/auth/signup weak password", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/auth/signup", map[string]string{
			"email": "weak@example.com", "password": "123",
		}, nil)
		assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})

	t.Run("POST /v1/auth/login wrong password", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "alice@example.com", "password": "nope-nope",
		}, nil)
		assertErrorCode(t, w, http.StatusUnauthorized, "UNAUTHENTICATED")
	})

	t.Run("GET /v1/users/me", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodGet, "/v1/users/me", nil, authHeaders(token))
		assertStatus(t, w, http.StatusOK)
		body := decodeJSONMap(t, w)
		if body["uid"] != uid || body["display_name"] != "Alice" {
			t.Fatalf("unexpected profile %v", body)
		}
		if body["familyId"] != nil {
			t.Fatalf("new account has familyId %v", body["familyId"])
		}
	})

	t.Run("GET /v1/users/me without token", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodGet, "/v1/users/me", nil, nil)
		assertErrorCode(t, w, http.StatusUnauthorized, "UNAUTHENTICATED")
	})

	t.Run("POST /v1/auth/logout ends the session", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "alice@example.com", "password": "secret1",
		}, nil)
		assertStatus(t, w, http.StatusOK)
		second, _ := decodeJSONMap(t, w)["token"].(string)

		w = performRequest(t, env.engine, http.MethodPost, "/v1/auth/logout", nil, authHeaders(second))
		assertStatus(t, w, http.StatusNoContent)

		w = performRequest(t, env.engine, http.MethodGet, "/v1/users/me", nil, authHeaders(second))
		assertErrorCode(t, w, http.StatusUnauthorized, "UNAUTHENTICATED")

		// The first session is unaffected.
		w = performRequest(t, env.engine, http.MethodGet, "/v1/users/me", nil, authHeaders(token))
		assertStatus(t, w, http.StatusOK)
	})
}

func TestFamilyEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	aliceToken, aliceUID := signup(t, env, "alice@example.com", "Alice")
	bobToken, bobUID := signup(t, env, "bob@example.com", "")
	carolToken, _ := signup(t, env, "carol@example.com", "Carol")

	w := performRequest(t, env.engine, http.MethodPost, "/v1/families", map[string]string{"name": "The Smiths"}, authHeaders(aliceToken))
	assertStatus(t, w, http.StatusCreated)
	created := decodeJSONMap(t, w)
	code, _ := created["invite_code"].(string)
	family, _ := created["family"].(map[string]any)
	familyID, _ := family["id"].(string)
	if len(code) != 6 || familyID == "" {
		t.Fatalf("unexpected create response %v", created)
	}

	t.Run("create while in a family", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/families", nil, authHeaders(aliceToken))
		assertErrorCode(t, w, http.StatusConflict, "ALREADY_IN_FAMILY")
	})

	t.Run("join with unknown code", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/families/join", map[string]string{"invite_code": "ZZZZZZ"}, authHeaders(bobToken))
		assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INVITE_CODE")
	})

	t.Run("join with empty code", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/families/join", map[string]string{"invite_code": ""}, authHeaders(bobToken))
		assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})

	w = performRequest(t, env.engine, http.MethodPost, "/v1/families/join", map[string]string{"invite_code": strings.ToLower(code)}, authHeaders(bobToken))
	assertStatus(t, w, http.StatusOK)
	if name := decodeJSONMap(t, w)["name"]; name != "The Smiths" {
		t.Fatalf("joined family name = %v", name)
	}

	t.Run("members list marks the head", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodGet, "/v1/families/me/members", nil, authHeaders(bobToken))
		assertStatus(t, w, http.StatusOK)
		members := decodeJSONList(t, w)
		if len(members) != 2 {
			t.Fatalf("expected 2 members, got %v", members)
		}
		for _, m := range members {
			isHead, _ := m["is_head"].(bool)
			if isHead != (m["uid"] == aliceUID) {
				t.Fatalf("wrong head flag on %v", m)
			}
			if m["uid"] == bobUID && m["display_name"] != "bob" {
				t.Fatalf("bob display name = %v", m["display_name"])
			}
		}
	})

	t.Run("non-head cannot remove", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodDelete, fmt.Sprintf("/v1/families/%s/members/%s", familyID, aliceUID), nil, authHeaders(bobToken))
		assertErrorCode(t, w, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("head cannot leave with members", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/families/leave", nil, authHeaders(aliceToken))
		assertErrorCode(t, w, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("head removes member", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodDelete, fmt.Sprintf("/v1/families/%s/members/%s", familyID, bobUID), nil, authHeaders(aliceToken))
		assertStatus(t, w, http.StatusNoContent)

		w = performRequest(t, env.engine, http.MethodGet, "/v1/families/me", nil, authHeaders(bobToken))
		assertErrorCode(t, w, http.StatusConflict, "NOT_IN_FAMILY")
	})

	t.Run("leave when not in a family", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/families/leave", nil, authHeaders(carolToken))
		assertErrorCode(t, w, http.StatusConflict, "NOT_IN_FAMILY")
	})

	t.Run("sole head leaves and the family is gone", func(t *testing.T) {
		w := performRequest(t, env.engine, http.MethodPost, "/v1/families/leave", nil, authHeaders(aliceToken))
		assertStatus(t, w, http.StatusNoContent)

		w = performRequest(t, env.engine, http.MethodPost, "/v1/families/join", map[string]string{"invite_code": code}, authHeaders(carolToken))
		assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INVITE_CODE")
	})
}

func TestHouseholdEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := signup(t, env, "dana@example.com", "Dana")
	outsider, _ := signup(t, env, "eve@example.com", "Eve")

	w := performRequest(t, env.engine, http.MethodGet, "/v1/tasks", nil, authHeaders(token))
	assertErrorCode(t, w, http.StatusConflict, "NOT_IN_FAMILY")

	w = performRequest(t, env.engine, http.MethodPost, "/v1/families", nil, authHeaders(token))
	assertStatus(t, w, http.StatusCreated)

	w = performRequest(t, env.engine, http.MethodPost, "/v1/tasks", map[string]string{
		"title": "Dishes", "dueDate": "2026-03-02", "assignee": "dana", "priority": "high",
	}, authHeaders(token))
	assertStatus(t, w, http.StatusCreated)
	task := decodeJSONMap(t, w)
	taskID, _ := task["id"].(string)
	if task["assignedBy"] != "Dana" || task["completed"] != false {
		t.Fatalf("unexpected task %v", task)
	}

	w = performRequest(t, env.engine, http.MethodPost, "/v1/tasks", map[string]string{"title": "No due date"}, authHeaders(token))
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = performRequest(t, env.engine, http.MethodPatch, "/v1/tasks/"+taskID, map[string]bool{"completed": true}, authHeaders(token))
	assertStatus(t, w, http.StatusOK)

	w = performRequest(t, env.engine, http.MethodGet, "/v1/tasks?completed=false", nil, authHeaders(token))
	assertStatus(t, w, http.StatusOK)
	if n := len(decodeJSONList(t, w)); n != 0 {
		t.Fatalf("expected no pending tasks, got %d", n)
	}

	w = performRequest(t, env.engine, http.MethodGet, "/v1/tasks?completed=maybe", nil, authHeaders(token))
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = performRequest(t, env.engine, http.MethodPost, "/v1/inventory", map[string]any{
		"name": "Soap", "quantity": "1", "category": "Bathroom", "isLowStock": true,
	}, authHeaders(token))
	assertStatus(t, w, http.StatusCreated)
	soapID, _ := decodeJSONMap(t, w)["id"].(string)

	w = performRequest(t, env.engine, http.MethodPut, "/v1/inventory/"+soapID, map[string]any{"quantity": "3", "isLowStock": false}, authHeaders(token))
	assertStatus(t, w, http.StatusOK)
	if got := decodeJSONMap(t, w); got["quantity"] != "3" || got["isLowStock"] != false {
		t.Fatalf("unexpected inventory item %v", got)
	}

	w = performRequest(t, env.engine, http.MethodPost, "/v1/shopping", map[string]string{
		"name": "Milk", "quantity": "2", "category": "Dairy",
	}, authHeaders(token))
	assertStatus(t, w, http.StatusCreated)
	milkID, _ := decodeJSONMap(t, w)["id"].(string)

	w = performRequest(t, env.engine, http.MethodGet, "/v1/overview", nil, authHeaders(token))
	assertStatus(t, w, http.StatusOK)
	overview := decodeJSONMap(t, w)
	if overview["pending_tasks"] != float64(0) || overview["low_stock_items"] != float64(0) || overview["shopping_items"] != float64(1) {
		t.Fatalf("unexpected overview %v", overview)
	}

	// Another family's member cannot touch these items.
	w = performRequest(t, env.engine, http.MethodPost, "/v1/families", nil, authHeaders(outsider))
	assertStatus(t, w, http.StatusCreated)
	w = performRequest(t, env.engine, http.MethodDelete, "/v1/shopping/"+milkID, nil, authHeaders(outsider))
	assertErrorCode(t, w, http.StatusNotFound, "NOT_FOUND")

	for _, path := range []string{"/v1/shopping/" + milkID, "/v1/inventory/" + soapID, "/v1/tasks/" + taskID} {
		w = performRequest(t, env.engine, http.MethodDelete, path, nil, authHeaders(token))
		assertStatus(t, w, http.StatusNoContent)
	}
}

func TestLiveEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := signup(t, env, "fay@example.com", "Fay")

	w := performRequest(t, env.engine, http.MethodGet, "/v1/live?topic=tasks", nil, authHeaders(token))
	assertErrorCode(t, w, http.StatusConflict, "NOT_IN_FAMILY")
	w = performRequest(t, env.engine, http.MethodGet, "/v1/live?topic=weather", nil, authHeaders(token))
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = performRequest(t, env.engine, http.MethodPost, "/v1/families", nil, authHeaders(token))
	assertStatus(t, w, http.StatusCreated)

	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live?topic=tasks"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		t.Fatalf("dial: %v (response %v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })

	type liveMessage struct {
		Topic string           `json:"topic"`
		Data  []map[string]any `json:"data"`
		Error string           `json:"error"`
	}
	read := func() liveMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg liveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		return msg
	}

	first := read()
	if first.Topic != TopicTasks || first.Error != "" || len(first.Data) != 0 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	w = performRequest(t, env.engine, http.MethodPost, "/v1/tasks", map[string]string{
		"title": "Trash", "dueDate": "2026-03-02", "assignee": "fay",
	}, authHeaders(token))
	assertStatus(t, w, http.StatusCreated)

	next := read()
	if len(next.Data) != 1 || next.Data[0]["title"] != "Trash" {
		t.Fatalf("unexpected snapshot after add %+v", next)
	}

	// Signing out closes the connection.
	w = performRequest(t, env.engine, http.MethodPost, "/v1/auth/logout", nil, authHeaders(token))
	assertStatus(t, w, http.StatusNoContent)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, CloseSignedOut) {
			t.Fatalf("expected close %d, got %v", CloseSignedOut, err)
		}
		break
	}
}

func TestLiveEndpoint_ClosesAfterRemoval(t *testing.T) {
	env := setupTestEnv(t)
	headToken, _ := signup(t, env, "gus@example.com", "Gus")
	memberToken, memberUID := signup(t, env, "hal@example.com", "Hal")

	w := performRequest(t, env.engine, http.MethodPost, "/v1/families", nil, authHeaders(headToken))
	assertStatus(t, w, http.StatusCreated)
	created := decodeJSONMap(t, w)
	code, _ := created["invite_code"].(string)
	family, _ := created["family"].(map[string]any)
	familyID, _ := family["id"].(string)

	w = performRequest(t, env.engine, http.MethodPost, "/v1/families/join", map[string]string{"invite_code": code}, authHeaders(memberToken))
	assertStatus(t, w, http.StatusOK)

	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live?topic=tasks"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + memberToken}})
	if err != nil {
		t.Fatalf("dial: %v (response %v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, first, err := conn.ReadMessage(); err != nil || !strings.Contains(string(first), `"topic":"tasks"`) {
		t.Fatalf("initial snapshot %s (%v)", first, err)
	}

	w = performRequest(t, env.engine, http.MethodDelete, fmt.Sprintf("/v1/families/%s/members/%s", familyID, memberUID), nil, authHeaders(headToken))
	assertStatus(t, w, http.StatusNoContent)

	w = performRequest(t, env.engine, http.MethodPost, "/v1/tasks", map[string]string{
		"title": "Secret", "dueDate": "2026-03-02", "assignee": "gus",
	}, authHeaders(headToken))
	assertStatus(t, w, http.StatusCreated)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			if strings.Contains(string(msg), "Secret") {
				t.Fatalf("removed member received %s", msg)
			}
			continue
		}
		if !websocket.IsCloseError(err, CloseFamilyChanged) {
			t.Fatalf("expected close %d, got %v", CloseFamilyChanged, err)
		}
		break
	}

	// A fresh connection is refused with a normal HTTP error.
	w = performRequest(t, env.engine, http.MethodGet, "/v1/live?topic=tasks", nil, authHeaders(memberToken))
	assertErrorCode(t, w, http.StatusConflict, "NOT_IN_FAMILY")
}
