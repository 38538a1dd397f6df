package scan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_Scan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scan" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.DocumentID != "doc-1" {
			t.Errorf("unexpected document id: %s", req.DocumentID)
		}
		json.NewEncoder(w).Encode(Result{Findings: []Finding{
			{Type: "pii", Content: "555-01-9999", Page: 1, Confidence: 0.93, Severity: "high"},
		}})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key123", nil)
	result, err := client.Scan(context.Background(), Request{
		DocumentID:  "doc-1",
		Name:        "contract.pdf",
		ContentType: "application/pdf",
		Content:     []byte("fake pdf bytes"),
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Findings))
	}
	if result.Findings[0].Type != "pii" || result.Findings[0].Severity != "high" {
		t.Fatalf("unexpected finding: %+v", result.Findings[0])
	}
}

func TestHTTPClient_ScanServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", nil)
	if _, err := client.Scan(context.Background(), Request{DocumentID: "doc-1"}); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}
