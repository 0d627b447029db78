package llm

import "github.com/mohans/capturex/retry"

// IsTransient extends retry.IsTransient with genai API errors: 5xx statuses
// are retried, every other status is not.
func IsTransient(err error) bool {
	if retry.IsPermanent(err) {
		return false
	}
	if code, ok := apiStatus(err); ok {
		return code >= 500
	}
	return retry.IsTransient(err)
}
