package cli

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestSimilarCommand(t *testing.T) {
	url := startAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/compounds/42/similar" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("min_score"); got != "0.85" {
			t.Errorf("expected min_score=0.85, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"compound_id":   42,
			"compound_name": "Ibuprofen",
			"min_score":     0.85,
			"count":         1,
			"similar_compounds": []map[string]interface{}{
				{
					"compound_id":        7,
					"standard_name":      "Naproxen",
					"molecular_formula":  "C14H14O3",
					"similarity_score":   0.91,
					"fingerprint_method": "morgan",
				},
			},
		})
	})

	out, err := runCommand(t, "similar", "42", "--min-score", "0.85", "--server", url)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if !strings.Contains(out, "Naproxen") {
		t.Errorf("output missing similar compound: %q", out)
	}
	if !strings.Contains(out, "0.9100") {
		t.Errorf("output missing score: %q", out)
	}
	if !strings.Contains(out, "morgan") {
		t.Errorf("output missing fingerprint method: %q", out)
	}
}

func TestSimilarCommandEmptyResult(t *testing.T) {
	url := startAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"compound_id":       42,
			"compound_name":     "Ibuprofen",
			"min_score":         0.7,
			"count":             0,
			"similar_compounds": []map[string]interface{}{},
		})
	})

	out, err := runCommand(t, "similar", "42", "--server", url)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if !strings.Contains(out, "No similar compounds found") {
		t.Errorf("expected empty-result message, got %q", out)
	}
}

func TestSimilarCommandInvalidID(t *testing.T) {
	_, err := runCommand(t, "similar", "abc")
	if err == nil {
		t.Error("expected error for non-numeric compound id")
	}

	_, err = runCommand(t, "similar", "0")
	if err == nil {
		t.Error("expected error for non-positive compound id")
	}
}

func TestInvalidateCommand(t *testing.T) {
	url := startAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/similarities/invalidate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body["compound_id"] != 42 {
			t.Errorf("expected compound_id 42, got %d", body["compound_id"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"compound_id": 42, "invalidated_count": 6,
		})
	})

	out, err := runCommand(t, "invalidate", "42", "--server", url)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if !strings.Contains(out, "Invalidated 6 similarity analyses for compound 42") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestInvalidateCommandInvalidID(t *testing.T) {
	_, err := runCommand(t, "invalidate", "-5")
	if err == nil {
		t.Error("expected error for negative compound id")
	}
}
