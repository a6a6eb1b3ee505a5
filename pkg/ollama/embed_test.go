package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbed(t *testing.T) {
	var got ollamaEmbedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"embedding":[0.5,-0.25,1]}`))
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL+"/", "nomic-embed-text")
	vec, err := c.Embed(context.Background(), "2020 Toyota Camry")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -0.25 || vec[2] != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if got.Model != "nomic-embed-text" || got.Prompt != "2020 Toyota Camry" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestEmbedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Type"), "json") {
			var req ollamaEmbedReq
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Prompt == "empty" {
				w.Write([]byte(`{"embedding":[]}`))
				return
			}
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "m")
	if _, err := c.Embed(context.Background(), "boom"); err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := c.Embed(context.Background(), "empty"); err == nil {
		t.Fatal("expected empty embedding error")
	}
	if _, err := c.EmbedBatch(context.Background(), []string{"boom"}); err == nil || !strings.Contains(err.Error(), "[0]") {
		t.Fatalf("expected indexed batch error, got %v", err)
	}
}
