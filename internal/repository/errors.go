package repository

import "fmt"

// NotFoundError reports a missing row. Handlers match on it to map
// lookups to 404s instead of 500s.
type NotFoundError struct {
	resource string
	id       uint
}

// NewNotFoundError creates a NotFoundError for the given resource and id.
func NewNotFoundError(resource string, id uint) NotFoundError {
	return NotFoundError{resource: resource, id: id}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.resource, e.id)
}
