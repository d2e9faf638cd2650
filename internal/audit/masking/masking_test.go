package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "inv_****wxyz", MaskSecret("inv_abcdefwxyz"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "d****@example.com", MaskEmail("dana@example.com"))
	assert.Equal(t, "****", MaskEmail("@x"))
}

func TestMaskJSONOnlyTouchesSensitiveKeys(t *testing.T) {
	got := MaskJSON(map[string]any{
		"name":  "Support",
		"email": "dana@example.com",
		"nested": map[string]any{
			"invite_token": "0123456789",
		},
		"tokens": []any{"aaaaaaaa1111"},
		"count":  3,
		"  ":     "dropped",
	})

	assert.Equal(t, "Support", got["name"])
	assert.Equal(t, "d****@example.com", got["email"])
	assert.Equal(t, map[string]any{"invite_token": "****6789"}, got["nested"])
	assert.Equal(t, []any{"****1111"}, got["tokens"])
	assert.Equal(t, 3, got["count"])
	assert.NotContains(t, got, "  ")
	assert.Nil(t, MaskJSON(nil))
}
