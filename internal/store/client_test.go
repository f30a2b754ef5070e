package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(server.URL, "test-key", "base123")
	client.SetHTTPClient(server.Client())
	return client, server
}

func TestFindFollowsPagination(t *testing.T) {
	calls := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			json.NewEncoder(w).Encode(listResponse{
				Records: []Record{{ID: "rec1", Fields: map[string]interface{}{"fingerprint": "aaa"}}},
				Offset:  "page2",
			})
			return
		}
		json.NewEncoder(w).Encode(listResponse{
			Records: []Record{{ID: "rec2", Fields: map[string]interface{}{"fingerprint": "bbb"}}},
		})
	}))
	defer server.Close()

	records, err := client.Find(context.Background(), "Articles", Query{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 page fetches, got %d", calls)
	}
	if len(records) != 2 || records[0].ID != "rec1" || records[1].ID != "rec2" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestFindSendsCompiledFilter(t *testing.T) {
	var gotFormula string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		json.NewEncoder(w).Encode(listResponse{})
	}))
	defer server.Close()

	_, err := client.Find(context.Background(), "Pre-Filter Log", Query{
		Filter: And(Eq("slot", "1"), IsAfterNow("published_at", 24)),
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := "AND({slot}=1,IS_AFTER({published_at}, DATEADD(NOW(), -24, 'hours')))"
	if gotFormula != want {
		t.Errorf("filterByFormula = %q, want %q", gotFormula, want)
	}
}

func TestInsertBatchChunksAtWriteLimit(t *testing.T) {
	var batchSizes []int
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload recordsEnvelope
		json.NewDecoder(r.Body).Decode(&payload)
		batchSizes = append(batchSizes, len(payload.Records))

		out := recordsEnvelope{}
		for i := range payload.Records {
			out.Records = append(out.Records, Record{ID: fmt.Sprintf("rec%d", i)})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	rows := make([]map[string]interface{}, 23)
	for i := range rows {
		rows[i] = map[string]interface{}{"n": i}
	}
	ids, err := client.InsertBatch(context.Background(), "Articles", rows)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if len(ids) != 23 {
		t.Errorf("got %d ids, want 23", len(ids))
	}
	want := []int{10, 10, 3}
	if len(batchSizes) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", batchSizes, want)
	}
	for i := range want {
		if batchSizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, batchSizes[i], want[i])
		}
	}
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	var patched bool
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(listResponse{
				Records: []Record{{ID: "recX", Fields: map[string]interface{}{"issue_id": "Pivot 5 - Jan 05"}}},
			})
		case http.MethodPatch:
			patched = true
			json.NewEncoder(w).Encode(Record{ID: "recX"})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	id, err := client.Upsert(context.Background(), "Newsletter Issues Archive", "issue_id",
		map[string]interface{}{"issue_id": "Pivot 5 - Jan 05", "status": "sent"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if id != "recX" {
		t.Errorf("id = %q, want recX", id)
	}
	if !patched {
		t.Error("expected PATCH on existing row")
	}
}

func TestUpsertCreatesWhenMissing(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(listResponse{})
		case http.MethodPost:
			json.NewEncoder(w).Encode(recordsEnvelope{Records: []Record{{ID: "recNew"}}})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	id, err := client.Upsert(context.Background(), "Newsletter Issues Archive", "issue_id",
		map[string]interface{}{"issue_id": "Signal - Jan 06"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if id != "recNew" {
		t.Errorf("id = %q, want recNew", id)
	}
}

func TestStatusAdvances(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusDecorated, true},
		{StatusDecorated, StatusCompiled, true},
		{StatusCompiled, StatusNextSend, true},
		{StatusCompiled, StatusScheduled, true},
		{StatusScheduled, StatusNextSend, true},
		{StatusNextSend, StatusSent, true},
		{StatusNextSend, StatusFailed, true},
		{StatusSent, StatusPending, false},
		{StatusDecorated, StatusPending, false},
		{StatusCompiled, StatusPending, false},
	}
	for _, tt := range tests {
		if got := StatusAdvances(tt.from, tt.to); got != tt.want {
			t.Errorf("StatusAdvances(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
