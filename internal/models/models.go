// package models defines the data model for crosstrim
package models

import (
	"time"
)

// Model is a row of the run journal. [BatchRun] and [JobResult] implement it.
//
// Identity and timestamps are assigned by the repository on Create, so they are read-only here.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error // called before every insert and update
}

// Repository is CRUD access to one journal table.
//
// Get, Update and Delete report a missing row with the table's not-found sentinel.
// List criteria keys are documented by each implementation; unknown keys are ignored.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
