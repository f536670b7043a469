package database

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	SubmissionStatusSent     SubmissionStatus = "sent"
	SubmissionStatusRejected SubmissionStatus = "rejected"
	SubmissionStatusFailed   SubmissionStatus = "failed"
	// Sent, but the idempotency record could not be written.
	SubmissionStatusUnrecorded SubmissionStatus = "unrecorded"
)

type Submission struct {
	GUID      uuid.UUID        `gorm:"primaryKey;type:uuid" json:"guid"`
	DedupKey  string           `gorm:"column:dedup_key;index" json:"dedup_key"`
	RequestId string           `gorm:"column:request_id" json:"request_id"`
	ChainId   uint64           `gorm:"column:chain_id" json:"chain_id"`
	ToAddress common.Address   `gorm:"serializer:bytes;column:to_address" json:"to_address"`
	TxHash    common.Hash      `gorm:"serializer:bytes;column:tx_hash" json:"tx_hash"`
	Status    SubmissionStatus `gorm:"column:status" json:"status"`
	Attempts  int              `gorm:"column:attempts" json:"attempts"`
	Reason    string           `gorm:"column:reason" json:"reason"`
	Timestamp uint64           `gorm:"column:timestamp" json:"timestamp"`
}

func (Submission) TableName() string {
	return "submissions"
}

type SubmissionsView interface {
	QuerySubmissionsByKey(dedupKey string) ([]*Submission, error)
}

type SubmissionsDB interface {
	SubmissionsView

	StoreSubmission(*Submission) error
}

type submissionsDB struct {
	gorm *gorm.DB
}

func NewSubmissionsDB(db *gorm.DB) SubmissionsDB {
	return &submissionsDB{gorm: db}
}

func (db submissionsDB) QuerySubmissionsByKey(dedupKey string) ([]*Submission, error) {
	var submissions []*Submission
	err := db.gorm.Table("submissions").
		Where("dedup_key = ?", dedupKey).
		Order("timestamp DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (db submissionsDB) StoreSubmission(submission *Submission) error {
	return db.gorm.Table("submissions").Create(submission).Error
}
