package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAPI marks provider errors that will not go away on retry, such as
// exhausted credit or rejected credentials. Callers abort the run instead of
// degrading the current unit.
var ErrFatalAPI = errors.New("fatal LLM API error")

var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"api_key_invalid",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// wrapFatalError tags err with ErrFatalAPI when it matches a fatal pattern.
// Other errors are returned unchanged.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
