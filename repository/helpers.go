package repository

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pqUUIDArray adapts a uuid slice for ANY($n::uuid[]) parameters.
func pqUUIDArray(ids []uuid.UUID) interface{} {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}
