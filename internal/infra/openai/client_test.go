package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseYesNo(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"YES", true, false},
		{" yes.", true, false},
		{"No", false, false},
		{"NO, this is chit-chat", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := ParseYesNo(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseYesNo(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseYesNo(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClient_IsRequest(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"YES"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	c := NewClient("test-key", "", server.URL)
	ok, err := c.IsRequest(context.Background(), "looking for a black hoodie, budget 80")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ok {
		t.Error("Expected YES to be a request")
	}
	if gotModel != defaultModel {
		t.Errorf("Expected default model, got %q", gotModel)
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient("test-key", "m", server.URL)
	if _, err := c.IsRequest(context.Background(), "x"); err == nil {
		t.Error("Expected error from failing endpoint")
	}
}
