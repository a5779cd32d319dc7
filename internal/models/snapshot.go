package models

import (
	"errors"
	"time"

	"github.com/jellydator/validation"
)

// Snapshot is the export/import document. A nil list means the field was absent.
type Snapshot struct {
	Users        []User        `json:"users"`
	Transactions []Transaction `json:"transactions"`
	LastUpdated  time.Time     `json:"lastUpdated"`
}

func (s Snapshot) Validate() error {
	if s.Users == nil && s.Transactions == nil {
		return errors.New("users or transactions must be present")
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Users, validation.By(uniqueUsers)),
		validation.Field(&s.Transactions, validation.By(uniqueTransactions)),
	)
}

func uniqueUsers(value interface{}) error {
	users, _ := value.([]User)
	ids := make(map[string]struct{}, len(users))
	emails := make(map[string]struct{}, len(users))
	for _, u := range users {
		if _, ok := ids[u.ID]; ok {
			return errors.New("duplicate user id " + u.ID)
		}
		if _, ok := emails[u.Email]; ok {
			return errors.New("duplicate email " + u.Email)
		}
		ids[u.ID] = struct{}{}
		emails[u.Email] = struct{}{}
	}
	return nil
}

func uniqueTransactions(value interface{}) error {
	txs, _ := value.([]Transaction)
	ids := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, ok := ids[tx.ID]; ok {
			return errors.New("duplicate transaction id " + tx.ID)
		}
		ids[tx.ID] = struct{}{}
	}
	return nil
}

// ArchivedSnapshot is a snapshot stored in the archive.
type ArchivedSnapshot struct {
	ID       int64     `json:"id"`
	TakenAt  time.Time `json:"takenAt"`
	Snapshot Snapshot  `json:"snapshot"`
}
