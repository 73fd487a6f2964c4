package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexes_TTLOnExpiryFields(t *testing.T) {
	ttl := map[string]bool{}
	for _, spec := range Indexes() {
		if spec.Model.Options != nil && spec.Model.Options.ExpireAfterSeconds != nil {
			assert.Equal(t, int32(0), *spec.Model.Options.ExpireAfterSeconds)
			ttl[spec.Collection] = true
		}
	}

	assert.Equal(t, map[string]bool{Media: true, Stories: true, StoryMedia: true}, ttl)
}

func TestIndexes_MessageNotificationDedup(t *testing.T) {
	var found bool
	for _, spec := range Indexes() {
		opts := spec.Model.Options
		if spec.Collection != Notifications || opts == nil || opts.Name == nil || *opts.Name != "unviewed_message_once" {
			continue
		}
		found = true
		assert.True(t, *opts.Unique)
		assert.Equal(t, bson.M{"type": "message", "viewed": false}, opts.PartialFilterExpression)
		assert.Equal(t, bson.D{{Key: "receiver", Value: 1}, {Key: "sender", Value: 1}, {Key: "type", Value: 1}}, spec.Model.Keys)
	}
	assert.True(t, found)
}
