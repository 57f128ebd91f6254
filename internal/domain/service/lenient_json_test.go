package service

import "testing"

func TestDecodeLenientJSON_CleanObject(t *testing.T) {
	var out struct {
		Topic string `json:"topic"`
		Score float64
	}
	err := DecodeLenientJSON(`{"topic": "tides", "Score": 0.8}`, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Topic != "tides" {
		t.Errorf("topic = %q", out.Topic)
	}
}

func TestDecodeLenientJSON_FencedWithProse(t *testing.T) {
	raw := "Sure! Here is the JSON you asked for:\n```json\n{\"facts\": [\"a\", \"b\"]}\n```\nLet me know if you need more."
	var out struct {
		Facts []string `json:"facts"`
	}
	if err := DecodeLenientJSON(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Facts) != 2 || out.Facts[0] != "a" {
		t.Errorf("facts = %v", out.Facts)
	}
}

func TestDecodeLenientJSON_RepairsSloppyOutput(t *testing.T) {
	// Single quotes and a trailing comma, typical local-model output.
	raw := "{'topics': ['ocean currents', 'bioluminescence'],}"
	var out struct {
		Topics []string `json:"topics"`
	}
	if err := DecodeLenientJSON(raw, &out); err != nil {
		t.Fatalf("repair should handle sloppy JSON: %v", err)
	}
	if len(out.Topics) != 2 {
		t.Errorf("topics = %v", out.Topics)
	}
}

func TestDecodeLenientJSON_ArrayRoot(t *testing.T) {
	var out []string
	if err := DecodeLenientJSON("The list: [\"x\", \"y\"] as requested.", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("got %v", out)
	}
}

func TestDecodeLenientJSON_NoJSON(t *testing.T) {
	var out map[string]any
	if err := DecodeLenientJSON("I could not produce structured output, sorry.", &out); err == nil {
		t.Fatal("expected error when no JSON value present")
	}
}

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`prefix {"a": 1} suffix`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{`{"outer": {"inner": 2}} trailing`, `{"outer": {"inner": 2}}`},
		{`{"s": "brace } in string"}`, `{"s": "brace } in string"}`},
		{"no json here", ""},
	}
	for _, tt := range tests {
		if got := extractJSONBlock(tt.in); got != tt.want {
			t.Errorf("extractJSONBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
