package types

import "errors"

// Error kinds. Operations wrap one of these with detail, so callers test the
// kind with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrPersistence       = errors.New("storage failure")
	ErrIOFailure         = errors.New("image file failure")
	ErrNotFound          = errors.New("food item not found")
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera unavailable")
	ErrInvalidState      = errors.New("operation not allowed in current capture state")
)

// Catalog lifecycle errors.
var (
	ErrCatalogDetached = errors.New("catalog is detached")
	ErrAlreadyAttached = errors.New("catalog is already attached")
)

// notices maps each error kind to the short message shown to the user.
var notices = []struct {
	kind error
	text string
}{
	{ErrValidation, "Please check the title and expiry date"},
	{ErrNotFound, "That item no longer exists"},
	{ErrPermissionDenied, "Camera permission is required to use this feature"},
	{ErrDeviceUnavailable, "Error starting camera"},
	{ErrInvalidState, "The camera is not ready"},
	{ErrIOFailure, "Could not save the photo"},
	{ErrPersistence, "Could not save your changes"},
	{ErrCatalogDetached, "Storage is not open"},
	{ErrAlreadyAttached, "Storage is already open"},
}

// Notice returns a short human-readable message for err. Errors of an
// unknown kind get a generic message; a nil error returns "".
func Notice(err error) string {
	if err == nil {
		return ""
	}
	for _, n := range notices {
		if errors.Is(err, n.kind) {
			return n.text
		}
	}
	return "Something went wrong"
}

// IsUserError reports whether err is caused by user input or a user decision
// rather than a storage or device fault.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrInvalidState)
}
