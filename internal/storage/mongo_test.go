package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIDKey(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"lower hex", "65a1b2c3d4e5f60718293a4b", "65a1b2c3d4e5f60718293a4b"},
		{"upper hex", "65A1B2C3D4E5F60718293A4B", "65a1b2c3d4e5f60718293a4b"},
		{"plain string", "User-42", "User-42"},
		{"short hex", "ABCDEF", "ABCDEF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idKey(tt.id))
		})
	}
}

func TestDecodedIDMatchesRequestedSpelling(t *testing.T) {
	requested := "65A1B2C3D4E5F60718293A4B"

	oid, ok := idValue(requested).(primitive.ObjectID)
	assert.True(t, ok)
	decoded := idString(oid)

	assert.NotEqual(t, requested, decoded)
	assert.Equal(t, idKey(requested), idKey(decoded))
	assert.Equal(t, "User-42", idString(idValue("User-42")))
}
