package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// startAPIStub runs an httptest server answering with the given handler and
// returns its URL for the --server flag.
func startAPIStub(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

// runCommand executes the root command with args and returns captured stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommandStructure(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "pharmaref" {
		t.Errorf("expected Use='pharmaref', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	expected := []string{"search", "stats", "similar", "invalidate"}
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestNewRootCommandGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	serverFlag := cmd.PersistentFlags().Lookup("server")
	if serverFlag == nil {
		t.Fatal("server flag should exist")
	}
	if serverFlag.DefValue != "http://localhost:8080" {
		t.Errorf("server flag default should be 'http://localhost:8080', got %q", serverFlag.DefValue)
	}

	outputFlag := cmd.PersistentFlags().Lookup("output")
	if outputFlag == nil {
		t.Fatal("output flag should exist")
	}
	if outputFlag.Shorthand != "o" {
		t.Errorf("output flag shorthand should be 'o', got %q", outputFlag.Shorthand)
	}
	if outputFlag.DefValue != "table" {
		t.Errorf("output flag default should be 'table', got %q", outputFlag.DefValue)
	}

	if cmd.PersistentFlags().Lookup("timeout") == nil {
		t.Error("timeout flag should exist")
	}
}

func TestRootCommandUnknownSubcommand(t *testing.T) {
	_, err := runCommand(t, "nosuchcommand")
	if err == nil {
		t.Error("expected error for unknown subcommand")
	}
}

func TestRootCommandRejectsBadServerAddr(t *testing.T) {
	_, err := runCommand(t, "stats", "compounds", "--server", "ftp://bad")
	if err == nil {
		t.Error("expected error for unsupported server scheme")
	}
}

func TestBuildVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	if GitCommit == "" {
		t.Error("GitCommit should have a default value")
	}
	if BuildDate == "" {
		t.Error("BuildDate should have a default value")
	}
}

func TestFormatTable(t *testing.T) {
	out := FormatTable(
		[]string{"ID", "NAME"},
		[][]string{
			{"1", "Aspirin"},
			{"2", "Ibuprofen"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header, separator, 2 rows), got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header line should start with ID, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "--") {
		t.Errorf("separator line missing, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "Aspirin") {
		t.Errorf("first row should contain Aspirin, got %q", lines[2])
	}
}

func TestFormatTableEmptyHeaders(t *testing.T) {
	if out := FormatTable(nil, nil); out != "" {
		t.Errorf("expected empty output for empty headers, got %q", out)
	}
}

func TestFormatTableShortRow(t *testing.T) {
	out := FormatTable(
		[]string{"A", "B", "C"},
		[][]string{{"only"}},
	)
	if !strings.Contains(out, "only") {
		t.Errorf("row value missing from output: %q", out)
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight('ab', 5) = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abcdef" {
		t.Errorf("padRight should not truncate, got %q", got)
	}
}

func TestGetCLIContextUninitialized(t *testing.T) {
	cmd := NewRootCommand()
	if _, err := GetCLIContext(cmd); err == nil {
		t.Error("expected error before persistentPreRun ran")
	}
}

func TestStatsCommandTableOutput(t *testing.T) {
	url := startAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/compounds/statistics" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_compounds":     120,
			"valid_compounds":     110,
			"invalid_compounds":   10,
			"with_pubchem_cid":    90,
			"with_structure_data": 80,
			"weight_distribution": map[string]int64{"0-100": 5, "100-300": 60},
		})
	})

	out, err := runCommand(t, "stats", "compounds", "--server", url)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if !strings.Contains(out, "total compounds") {
		t.Errorf("output missing total row: %q", out)
	}
	if !strings.Contains(out, "120") {
		t.Errorf("output missing total value: %q", out)
	}
	if !strings.Contains(out, "weight 0-100") {
		t.Errorf("output missing weight bucket: %q", out)
	}
}

func TestStatsCommandJSONOutput(t *testing.T) {
	url := startAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_products":       40,
			"combination_products": 15,
		})
	})

	out, err := runCommand(t, "stats", "products", "--server", url, "-o", "json")
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}

	var decoded struct {
		Total int64 `json:"total_products"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if decoded.Total != 40 {
		t.Errorf("expected total_products 40, got %d", decoded.Total)
	}
}

func TestStatsCommandUnknownDomain(t *testing.T) {
	url := startAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for an unknown domain")
	})

	_, err := runCommand(t, "stats", "manufacturers", "--server", url)
	if err == nil {
		t.Error("expected error for unknown statistics domain")
	}
}
