package postgres

import (
	"encoding/json"
	"testing"

	"github.com/shoploft/api/internal/domain"
)

func TestEncodeVariantInfo(t *testing.T) {
	// A nil pointer must yield a nil byte slice so the driver writes SQL
	// NULL rather than the JSON literal null.
	if got := encodeVariantInfo(nil); got != nil {
		t.Fatalf("nil variant info encoded as %q, want nil", got)
	}

	data := encodeVariantInfo(&domain.VariantInfo{
		Name:    "Large",
		Options: map[string]string{"size": "L"},
	})
	if data == nil {
		t.Fatal("variant info encoded as nil")
	}
	var decoded domain.VariantInfo
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Name != "Large" || decoded.Options["size"] != "L" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}
