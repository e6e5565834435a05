// Package utils provides shared helpers (error wrapping, environment
// variable lookups) used across the coordinator and wallet binaries.
package utils

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
