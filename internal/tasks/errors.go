package tasks

import "fmt"

// TaskNotFoundError is returned for names that were never registered.
type TaskNotFoundError struct {
	Name string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("no task named '%s'", e.Name)
}

// TaskRegisteredError is returned by Register for a duplicate name.
type TaskRegisteredError struct {
	Name string
}

func (e TaskRegisteredError) Error() string {
	return fmt.Sprintf("a task named '%s' is already registered", e.Name)
}
