package bptree

import "github.com/hashicorp/go-uuid"

// genPageID mints a fresh page id for a node created by a split. IDs are
// random UUIDs; the physical placement of the page is the backend's
// concern, not the tree's.
func genPageID() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		panic(err)
	}
	return id
}
