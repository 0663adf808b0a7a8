package model

import "time"

// Entry is one key-value document in the local store.
type Entry struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	Shared    bool
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}
