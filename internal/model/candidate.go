package model

type CandidateState string

const (
	CandidatePending  CandidateState = "PENDING"
	CandidateNotified CandidateState = "NOTIFIED"
)

func (s CandidateState) String() string { return string(s) }

// CandidateEntry is one (request, helper) pair; unique per pair.
type CandidateEntry struct {
	ID           int64          `db:"id"`
	RequestID    string         `db:"request_id"`
	HelperUserID string         `db:"helper_user_id"`
	State        CandidateState `db:"state"`
}

// Role of a recipient relative to the event, used for template wording.
type Role string

const (
	RoleAny   Role = ""
	RolePayer Role = "PAYER"
	RolePayee Role = "PAYEE"
)
