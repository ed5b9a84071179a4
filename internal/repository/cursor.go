package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseBeforeCursor classifies a page cursor. A valid ObjectID must be
// resolved to that message's created_at by the caller; otherwise the cursor
// is a timestamp, parsed as RFC 3339 (with or without sub-seconds).
// Anything else is ignored and the page starts from the newest end.
func parseBeforeCursor(before string) (asID primitive.ObjectID, asTime time.Time, isID bool) {
	if before == "" {
		return primitive.NilObjectID, time.Time{}, false
	}
	if oid, err := primitive.ObjectIDFromHex(before); err == nil {
		return oid, time.Time{}, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, before); err == nil {
			return primitive.NilObjectID, t, false
		}
	}
	return primitive.NilObjectID, time.Time{}, false
}
