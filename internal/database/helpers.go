package database

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uuidArray adapts a uuid slice for use as a Postgres uuid[] parameter.
func uuidArray(ids []uuid.UUID) interface{} {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}
