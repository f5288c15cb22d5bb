package session

import (
	"time"

	"careercatalyst-backend/internal/prompt"
)

// AnalysisRecord captures one completed analysis. Records are immutable and
// append-only; insertion order defines history display order.
type AnalysisRecord struct {
	ID         string      `json:"id"`
	Kind       prompt.Kind `json:"type"`
	CreatedAt  time.Time   `json:"date"`
	Result     string      `json:"result"`
	ResumeText string      `json:"resume_text"`
	JobText    string      `json:"job_text"`
}

// ResumeVersion is a named saved copy of the resume text.
type ResumeVersion struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
}

// ApplicationStatus enumerates tracked application states.
type ApplicationStatus string

const (
	StatusApplied      ApplicationStatus = "Applied"
	StatusInterviewing ApplicationStatus = "Interviewing"
	StatusOffer        ApplicationStatus = "Offer"
	StatusRejected     ApplicationStatus = "Rejected"
	StatusGhosted      ApplicationStatus = "Ghosted"
)

// Valid reports whether s is a recognized status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusApplied, StatusInterviewing, StatusOffer, StatusRejected, StatusGhosted:
		return true
	}
	return false
}

// JobApplication is one tracked application.
type JobApplication struct {
	ID       string            `json:"id"`
	JobTitle string            `json:"job_title"`
	Company  string            `json:"company"`
	Date     time.Time         `json:"date"`
	Status   ApplicationStatus `json:"status"`
}

// UploadTarget selects which text field a document upload fills.
type UploadTarget string

const (
	TargetResume UploadTarget = "resume"
	TargetJob    UploadTarget = "job"
)

// Valid reports whether t is a recognized target.
func (t UploadTarget) Valid() bool {
	return t == TargetResume || t == TargetJob
}

// State is the full per-profile session state. Every field maps to one
// persisted slice; there is no cross-slice transaction.
type State struct {
	Unlocked        bool             `json:"unlocked"`
	Email           string           `json:"email"`
	ResumeText      string           `json:"resume_text"`
	JobText         string           `json:"job_text"`
	LastResult      string           `json:"last_result"`
	History         []AnalysisRecord `json:"history"`
	Applications    []JobApplication `json:"applications"`
	Versions        []ResumeVersion  `json:"versions"`
	ActiveVersionID string           `json:"active_version_id"`
	Theme           string           `json:"theme"`
	LastSeenVersion string           `json:"last_seen_version"`
}
