package admission

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the outcome a school reported for an application.
type Status string

const (
	Accepted   Status = "Accepted"
	Rejected   Status = "Rejected"
	Waitlisted Status = "Waitlisted"
	Deferred   Status = "Deferred"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{Accepted, Rejected, Waitlisted, Deferred}

// ApplicantType is the admission pathway of the applicant.
type ApplicantType string

const (
	Type101  ApplicantType = "101"
	Type105D ApplicantType = "105D"
	Type105F ApplicantType = "105F"
)

// ApplicantTypes lists every valid applicant type.
var ApplicantTypes = []ApplicantType{Type101, Type105D, Type105F}

// ParseStatus matches s against the known statuses, ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ParseApplicantType matches s against the known applicant types, ignoring case.
func ParseApplicantType(s string) (ApplicantType, error) {
	for _, at := range ApplicantTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(at)) {
			return at, nil
		}
	}
	return "", fmt.Errorf("unknown applicant type %q", s)
}

// User identifies a member of the community.
type User struct {
	ID   string
	Name string
}

// Submission is a decision reported by a user, waiting for moderation.
type Submission struct {
	Submitter     User
	School        string
	Program       string
	Status        Status
	Average       string
	Date          string
	ApplicantType ApplicantType
	Anonymous     bool
	Note          string // optional
}

// Validate checks that the submission has every required field and
// rewrites Status and ApplicantType to their canonical spelling.
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.Submitter.ID) == "" {
		return errors.New("submitter is required")
	}
	if strings.TrimSpace(s.School) == "" {
		return errors.New("school is required")
	}
	if strings.TrimSpace(s.Program) == "" {
		return errors.New("program is required")
	}
	status, err := ParseStatus(string(s.Status))
	if err != nil {
		return err
	}
	if strings.TrimSpace(s.Average) == "" {
		return errors.New("average is required")
	}
	if strings.TrimSpace(s.Date) == "" {
		return errors.New("date is required")
	}
	applicantType, err := ParseApplicantType(string(s.ApplicantType))
	if err != nil {
		return err
	}
	s.Status = status
	s.ApplicantType = applicantType
	return nil
}

// DeletionRequest asks moderators to remove a previously announced decision.
// Partition and Row are resolved when the request is made so approval does
// not have to look them up again.
type DeletionRequest struct {
	Requester  User
	Identifier string
	Partition  string
	Row        int

	// Copied from the persisted decision for the moderator's benefit.
	School  string
	Program string
	Status  Status
	Average string
}
