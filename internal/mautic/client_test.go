package mautic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Config{BaseURL: server.URL, Username: "api", Password: "secret"})
	client.SetHTTPClient(server.Client())
	return client, server
}

func TestCreateEmail(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "secret" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		if r.URL.Path != "/api/emails/new" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var def EmailDefinition
		json.NewDecoder(r.Body).Decode(&def)
		if !def.IsPublished || def.EmailType != "template" {
			t.Errorf("def = %+v", def)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"email": map[string]interface{}{"id": 42, "name": def.Name, "subject": def.Subject},
		})
	}))
	defer server.Close()

	email, err := client.CreateEmail(context.Background(), EmailDefinition{
		Name:    "Pivot 5 - Jan 05",
		Subject: "OpenAI ships GPT-5",
	})
	if err != nil {
		t.Fatalf("CreateEmail: %v", err)
	}
	if email.ID != 42 {
		t.Errorf("ID = %d", email.ID)
	}
}

func TestAttachTransportAndSend(t *testing.T) {
	var paths []string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		switch r.URL.Path {
		case "/api/emails/42/transport":
			var body map[string]int
			json.NewDecoder(r.Body).Decode(&body)
			if body["transport_id"] != 7 {
				t.Errorf("transport_id = %d", body["transport_id"])
			}
			w.Write([]byte(`{}`))
		case "/api/emails/42/send":
			if r.URL.Query().Get("listId") != "3" {
				t.Errorf("listId = %q", r.URL.Query().Get("listId"))
			}
			json.NewEncoder(w).Encode(SendResult{Success: 1, SentCount: 1200})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	if err := client.AttachTransport(context.Background(), 42, 7); err != nil {
		t.Fatalf("AttachTransport: %v", err)
	}
	result, err := client.SendToSegment(context.Background(), 42, 3)
	if err != nil {
		t.Fatalf("SendToSegment: %v", err)
	}
	if result.SentCount != 1200 {
		t.Errorf("SentCount = %d", result.SentCount)
	}
}

func TestGetStats(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"email": map[string]interface{}{
				"id": 42,
				"stats": Stats{
					SentCount: 1200, ReadCount: 480, ReadRate: 0.4,
					ClickCount: 60, ClickRate: 0.05, BounceCount: 3,
				},
			},
		})
	}))
	defer server.Close()

	stats, err := client.GetStats(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.SentCount != 1200 || stats.ReadRate != 0.4 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestErrorStatus(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"invalid"}]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := client.CreateEmail(context.Background(), EmailDefinition{}); err == nil {
		t.Fatal("expected error on 400")
	}
}
