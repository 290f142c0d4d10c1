package utils

import (
	"strings"

	"github.com/google/uuid"
)

// tempPrefix marks client-assigned placeholder ids. The remote store never
// generates ids with this prefix, so the two id spaces cannot collide.
const tempPrefix = "temp-"

// GenerateID returns a new durable-style id
func GenerateID() string {
	return uuid.New().String()
}

// TempID returns a new temporary message id
func TempID() string {
	return tempPrefix + uuid.New().String()
}

// IsTempID reports whether id is a client-assigned temporary id
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// IsUUID checks if the string is a valid UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
