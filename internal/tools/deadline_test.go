package tools

import (
	"context"
	"testing"
)

func TestCalculateDeadline(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		start string
		days  int
		want  string
	}{
		{"thirty days", "2024-01-01", 30, "2024-01-31"},
		{"crosses month", "2024-01-15", 30, "2024-02-14"},
		{"leap year", "2024-02-01", 29, "2024-03-01"},
		{"crosses year", "2023-12-15", 30, "2024-01-14"},
		{"zero days", "2024-06-01", 0, "2024-06-01"},
		{"negative days", "2024-06-01", -1, "2024-05-31"},
		{"slash format rejected", "01/01/2024", 30, "Error: Use YYYY-MM-DD format."},
		{"prose date rejected", "January 1, 2024", 30, "Error: Use YYYY-MM-DD format."},
		{"empty rejected", "", 30, "Error: Use YYYY-MM-DD format."},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateDeadline(tc.start, tc.days); got != tc.want {
				t.Errorf("CalculateDeadline(%q, %d) = %q, want %q", tc.start, tc.days, got, tc.want)
			}
		})
	}
}

func TestDeadlineTool_InvokableRun(t *testing.T) {
	t.Parallel()

	tool := NewDeadlineTool()

	got, err := tool.InvokableRun(context.Background(), `{"start_date":"2024-01-01","days":30}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024-01-31" {
		t.Errorf("got %q, want 2024-01-31", got)
	}

	// A malformed date is a tool result the model can read, not a Go error.
	got, err = tool.InvokableRun(context.Background(), `{"start_date":"tomorrow","days":7}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Error: Use YYYY-MM-DD format." {
		t.Errorf("got %q, want corrective format message", got)
	}

	// Malformed JSON is a real error.
	if _, err := tool.InvokableRun(context.Background(), `{not json`); err == nil {
		t.Error("invalid JSON input must return an error")
	}
}

func TestDeadlineTool_Info(t *testing.T) {
	t.Parallel()

	info, err := NewDeadlineTool().Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "calculate_deadline" {
		t.Errorf("tool name: got %q", info.Name)
	}
}
