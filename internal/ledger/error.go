package ledger

import "errors"

// NotFoundError is returned when a collection has no record under a key.
type NotFoundError struct {
	Namespace string
	Key       string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Namespace + ": not found"
	}
	return e.Namespace + "/" + e.Key + ": not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, &NotFoundError{})
}
