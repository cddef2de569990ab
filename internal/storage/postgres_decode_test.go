package storage

import (
	"testing"

	"avatarShopAPI/internal/accessory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAccessoryJSONMalformedRequirement(t *testing.T) {
	for _, raw := range []string{`{"count":3}`, `{}`, `{"type":"streak","days":"seven"}`, `{not json`} {
		t.Run(raw, func(t *testing.T) {
			var a accessory.Accessory
			decodeAccessoryJSON(&a, []byte(`{"scale":1.2}`), []byte(raw))

			assert.Equal(t, 1.2, a.Metadata.Scale)
			require.NotNil(t, a.UnlockRequirement)
			u, ok := a.UnlockRequirement.Condition.(accessory.UnsupportedCondition)
			require.True(t, ok, "got %T", a.UnlockRequirement.Condition)
			assert.Error(t, u.Err)
			assert.Equal(t, raw, string(u.Raw))
		})
	}
}

func TestDecodeAccessoryJSONBadMetadataUsesDefaults(t *testing.T) {
	var a accessory.Accessory
	decodeAccessoryJSON(&a, []byte(`{"scale":"big"}`), []byte(`{"type":"level","level":3}`))

	assert.Equal(t, accessory.Transform{Scale: 1}, a.Metadata)
	require.NotNil(t, a.UnlockRequirement)
	assert.Equal(t, accessory.LevelCondition{Level: 3}, a.UnlockRequirement.Condition)
}

func TestDecodeAccessoryJSONNullRequirement(t *testing.T) {
	var a accessory.Accessory
	decodeAccessoryJSON(&a, nil, []byte("null"))
	assert.Nil(t, a.UnlockRequirement)
}
