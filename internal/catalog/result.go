package catalog

import "shopmirror/internal/models"

// Result summarizes a full sync run.
type Result struct {
	Upserted int
	Skipped  int
	Deleted  int
	Changes  models.ChangeSet
}
