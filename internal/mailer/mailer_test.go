package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/pivotmedia/newsroom/internal/mautic"
)

func TestGatewaySenderFullFlow(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/emails/new":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"email": map[string]interface{}{"id": 9},
			})
		case "/api/emails/9/transport":
			w.Write([]byte(`{}`))
		case "/api/emails/9/send":
			json.NewEncoder(w).Encode(mautic.SendResult{Success: 1, SentCount: 500})
		case "/api/emails/9":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"email": map[string]interface{}{
					"id":    9,
					"stats": mautic.Stats{SentCount: 500, ReadCount: 100},
				},
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client := mautic.NewClient(mautic.Config{BaseURL: server.URL, Username: "u", Password: "p"})
	client.SetHTTPClient(server.Client())
	sender := NewGatewaySender(client, GatewayConfig{
		SegmentID:   3,
		TransportID: 7,
		FromAddress: "news@pivotmedia.example",
		FromName:    "Pivot 5",
	})

	outcome, err := sender.Send(context.Background(), Request{
		Name:    "Pivot 5 - Jan 05",
		Subject: "OpenAI ships GPT-5",
		HTML:    "<html></html>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if outcome.GatewayEmailID != 9 {
		t.Errorf("GatewayEmailID = %d", outcome.GatewayEmailID)
	}
	if outcome.SentCount != 500 {
		t.Errorf("SentCount = %d", outcome.SentCount)
	}
	if outcome.Stats == nil || outcome.Stats.ReadCount != 100 {
		t.Errorf("Stats = %+v", outcome.Stats)
	}
	want := []string{
		"POST /api/emails/new",
		"POST /api/emails/9/transport",
		"POST /api/emails/9/send",
		"GET /api/emails/9",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestGatewaySenderStatsFailureIsSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/emails/new":
			json.NewEncoder(w).Encode(map[string]interface{}{"email": map[string]interface{}{"id": 9}})
		case "/api/emails/9/send":
			json.NewEncoder(w).Encode(mautic.SendResult{SentCount: 10})
		case "/api/emails/9":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := mautic.NewClient(mautic.Config{BaseURL: server.URL})
	client.SetHTTPClient(server.Client())
	sender := NewGatewaySender(client, GatewayConfig{SegmentID: 1})

	outcome, err := sender.Send(context.Background(), Request{Name: "n", Subject: "s", HTML: "h"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if outcome.Stats != nil {
		t.Errorf("Stats = %+v, want nil on snapshot failure", outcome.Stats)
	}
}

type fakeSES struct {
	got *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.got = params
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESSender(t *testing.T) {
	fake := &fakeSES{}
	sender := &SESSender{
		client:      fake,
		fromAddress: "news@pivotmedia.example",
		fromName:    "Pivot 5",
		recipients:  []string{"a@example.com", "b@example.com"},
	}

	outcome, err := sender.Send(context.Background(), Request{Subject: "Hello", HTML: "<p>hi</p>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if outcome.SentCount != 2 || outcome.Transport != "ses" {
		t.Errorf("outcome = %+v", outcome)
	}
	if fake.got == nil || *fake.got.FromEmailAddress != "Pivot 5 <news@pivotmedia.example>" {
		t.Errorf("from = %v", fake.got.FromEmailAddress)
	}
	if *fake.got.Content.Simple.Subject.Data != "Hello" {
		t.Errorf("subject = %q", *fake.got.Content.Simple.Subject.Data)
	}
}
