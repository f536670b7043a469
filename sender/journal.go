package sender

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dev-protocol/send-transactions/common/clock"
	"github.com/dev-protocol/send-transactions/database"
)

// DatabaseJournal appends every outcome to the submissions table.
type DatabaseJournal struct {
	submissions database.SubmissionsDB
	clock       clock.Clock
}

func NewDatabaseJournal(submissions database.SubmissionsDB, c clock.Clock) *DatabaseJournal {
	if c == nil {
		c = clock.SystemClock
	}
	return &DatabaseJournal{submissions: submissions, clock: c}
}

func (j *DatabaseJournal) Append(ctx context.Context, key string, outcome Outcome) error {
	submission := &database.Submission{
		GUID:      uuid.New(),
		DedupKey:  key,
		RequestId: outcome.RequestID,
		ChainId:   outcome.ChainID,
		ToAddress: outcome.To,
		Status:    submissionStatus(outcome),
		Attempts:  outcome.Attempts,
		Timestamp: uint64(j.clock.Now().Unix()),
	}
	if outcome.Tx != nil {
		submission.TxHash = outcome.Tx.Hash()
	}
	if outcome.Reason != nil {
		submission.Reason = outcome.Reason.Error()
	}
	return j.submissions.StoreSubmission(submission)
}

func submissionStatus(outcome Outcome) database.SubmissionStatus {
	switch {
	case outcome.Success():
		return database.SubmissionStatusSent
	case errors.As(outcome.Reason, new(*RecordingError)):
		return database.SubmissionStatusUnrecorded
	case errors.Is(outcome.Reason, ErrBroadcastFailure):
		return database.SubmissionStatusFailed
	default:
		return database.SubmissionStatusRejected
	}
}
