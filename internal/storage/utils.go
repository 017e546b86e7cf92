package storage

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateFileName generates a UUID-based object key with the provided extension
func GenerateFileName(extension string) string {
	name := "thumbnails/" + uuid.NewString()
	if extension == "" {
		return name
	}
	if !strings.HasPrefix(extension, ".") {
		return name + "." + extension
	}
	return name + extension
}

// PublicURL joins the public base URL of the bucket with an object key
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
