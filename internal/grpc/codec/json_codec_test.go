package codec

import "testing"

type sample struct {
	TreeID string `json:"tree_id"`
	Score  int    `json:"score"`
}

func TestJSON_MarshalUnmarshalRoundTrip(t *testing.T) {
	c := JSON{}

	original := sample{TreeID: "age-check", Score: 42}
	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded sample
	if err := c.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != original {
		t.Errorf("expected %+v, got %+v", original, decoded)
	}
}

func TestJSON_Name(t *testing.T) {
	if (JSON{}).Name() != "json" {
		t.Errorf("expected codec name %q, got %q", "json", (JSON{}).Name())
	}
}
