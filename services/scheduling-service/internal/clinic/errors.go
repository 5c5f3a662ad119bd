package clinic

import "errors"

// ErrConfiguration matches every *ConfigError through errors.Is.
var ErrConfiguration = errors.New("invalid recurrence configuration")

// ConfigError is a local validation failure detected before any remote call.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func NewConfigError(field, msg string) *ConfigError {
	return &ConfigError{Field: field, Message: msg}
}

// AsConfigError unwraps err into a *ConfigError when it is one.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
