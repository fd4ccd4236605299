package instance

import "os"

const fallbackID = "youniqle-0"

// GetID identifies this process to peers sharing a lock or subscription.
// YOUNIQLE_INSTANCE_ID wins over the hostname.
func GetID() string {
	if id := os.Getenv("YOUNIQLE_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
