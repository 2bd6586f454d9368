package tools

import (
	"context"
	"reflect"
	"testing"
)

func TestExtractMonetaryValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			"dollar with cents",
			"The monthly rent is $2,500.00, due on the first.",
			[]string{"$2,500.00"},
		},
		{
			"currency code before amount",
			"A penalty of USD 1,000 applies per incident.",
			[]string{"USD 1,000"},
		},
		{
			"currency code after amount",
			"The fee shall not exceed 1.000,00 EUR per quarter.",
			[]string{"1.000,00 EUR"},
		},
		{
			"symbol without separator",
			"A deposit of €500 and an admin fee of $1000.",
			[]string{"€500", "$1000"},
		},
		{
			"pound with thousands",
			"Liability is capped at £1,250,000.",
			[]string{"£1,250,000"},
		},
		{
			"spelled currency",
			"pay 500 dollars upon execution",
			[]string{"500 dollars"},
		},
		{
			"order of occurrence",
			"$100 now, then USD 200, then €300.",
			[]string{"$100", "USD 200", "€300"},
		},
		{
			"no amounts",
			"Either party may terminate with 60 days notice under Section 4.2.",
			nil,
		},
		{
			"dates not amounts",
			"effective from 2024-01-01 until 2025-01-01",
			nil,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractMonetaryValues(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ExtractMonetaryValues(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestMoneyTool_InvokableRun(t *testing.T) {
	t.Parallel()

	tool := NewMoneyTool()

	got, err := tool.InvokableRun(context.Background(), `{"text":"rent of $2,500.00 and a $500 fee"}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "$2,500.00\n$500" {
		t.Errorf("got %q", got)
	}

	got, err = tool.InvokableRun(context.Background(), `{"text":"no figures here"}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "No monetary values found." {
		t.Errorf("empty result message: got %q", got)
	}

	if _, err := tool.InvokableRun(context.Background(), `nope`); err == nil {
		t.Error("invalid JSON input must return an error")
	}
}

func TestMoneyTool_Info(t *testing.T) {
	t.Parallel()

	info, err := NewMoneyTool().Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "extract_monetary_values" {
		t.Errorf("tool name: got %q", info.Name)
	}
}
