package cache

import "fmt"

func ExplanationKey(documentID string, page int) string {
	return fmt.Sprintf("explanation:%s:%d", documentID, page)
}

func RateLimitKey(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s", clientKey)
}
