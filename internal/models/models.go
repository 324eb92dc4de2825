package models

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Tag{},
		&Product{},
		&Variant{},
		&Image{},
		&Vendor{},
		&Collection{},
		&Customer{},
		&QueueItem{},
		&SyncState{},
		&Lock{},
		&CartSession{},
	}
}
