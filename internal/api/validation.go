package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContentTooLarge is returned when a request body exceeds the configured limit.
var ErrContentTooLarge = errors.New("content too large")

// ValidateNormalizeRequest checks the structural requirements of a request.
// maxBytes <= 0 disables the size limit.
func ValidateNormalizeRequest(req NormalizeRequest, maxBytes int) error {
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}
	if maxBytes > 0 && len(req.Content) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrContentTooLarge, len(req.Content), maxBytes)
	}
	if req.Store && strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required when store is set", ErrInvalidRequest)
	}
	return nil
}
