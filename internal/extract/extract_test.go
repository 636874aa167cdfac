package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/extract/faces" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"faces": []map[string]any{
				{"embedding": []float32{0.1, 0.2}, "confidence": 0.97},
				{"embedding": []float32{0.3, 0.4}, "confidence": 0.82},
			},
			"dim": 2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	faces, err := client.Extract(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("Extract returned %d faces, want 2", len(faces))
	}
	if faces[0].Confidence != 0.97 {
		t.Errorf("first face confidence = %f", faces[0].Confidence)
	}
	if len(faces[0].Vector) != 2 || faces[0].Vector[0] != 0.1 {
		t.Errorf("first face vector = %v", faces[0].Vector)
	}
}

func TestClientExtractNoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"faces": []any{}, "dim": 512})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	faces, err := client.Extract(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("Extract returned %d faces, want 0", len(faces))
	}
}

func TestClientExtractServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Extract(context.Background(), []byte("image-bytes")); err == nil {
		t.Error("Extract with failing server succeeded")
	}
}
