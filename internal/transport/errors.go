package transport

import (
	"errors"
	"fmt"
	"regexp"
)

// StatusError is a response the server answered with but did not accept.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// FieldRejectedError is a rejection caused by a single field value the
// backend database refused (unknown column, value too long, bad format).
// The submission pipeline treats it as a soft success.
type FieldRejectedError struct {
	StatusCode int
	// Field is the column named in the message, when one could be found.
	Field   string
	Message string
}

func (e *FieldRejectedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("field rejected: %s", e.Message)
	}
	return fmt.Sprintf("field %q rejected: %s", e.Field, e.Message)
}

// IsFieldRejected reports whether err is a field rejection.
func IsFieldRejected(err error) bool {
	var fe *FieldRejectedError
	return errors.As(err, &fe)
}

// IsStatus reports whether err is a non-field server rejection.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

var (
	fieldRejectedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)unknown column`),
		regexp.MustCompile(`(?i)data too long for column`),
		regexp.MustCompile(`(?i)incorrect \w+ value`),
		regexp.MustCompile(`(?i)doesn't have a default value`),
		regexp.MustCompile(`(?i)cannot be null`),
		regexp.MustCompile(`(?i)out of range value`),
		regexp.MustCompile(`(?i)truncated`),
	}

	quotedName = regexp.MustCompile(`'([^']+)'`)
	columnName = regexp.MustCompile(`(?i)column '([^']+)'`)
)

// classify turns a rejected response into a typed error.
func classify(status int, message string) error {
	for _, re := range fieldRejectedPatterns {
		if re.MatchString(message) {
			return &FieldRejectedError{
				StatusCode: status,
				Field:      fieldName(message),
				Message:    message,
			}
		}
	}
	return &StatusError{StatusCode: status, Message: message}
}

func fieldName(message string) string {
	if m := columnName.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := quotedName.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}
