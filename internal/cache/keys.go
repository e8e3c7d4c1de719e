package cache

import "fmt"

func ExecutionResultKey(executionID string) string {
	return fmt.Sprintf("execution:%s", executionID)
}

func RateLimitKey(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s", clientKey)
}
