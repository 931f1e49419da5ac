package dto

import (
	"time"

	certdomain "certhub-backend/internal/certificate/domain"
)

// MaxSyncResults bounds the per-message outcomes returned with a summary.
const MaxSyncResults = 10

const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

type SyncRequest struct {
	Email string `json:"email"`
}

// SyncSummary counts one run. Processed is the number of candidates examined,
// so Processed == NewCertificates + Duplicates + Errors.
type SyncSummary struct {
	TotalEmailsFound int `json:"total_emails_found"`
	Processed        int `json:"processed"`
	NewCertificates  int `json:"new_certificates"`
	Duplicates       int `json:"duplicates"`
	Errors           int `json:"errors"`
}

// CertificateBrief is the slice of a new certificate echoed in sync results.
type CertificateBrief struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	CourseName string `json:"course_name"`
	Skills     string `json:"skills"`
}

type SyncResult struct {
	MessageID   string            `json:"message_id"`
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
	Certificate *CertificateBrief `json:"certificate,omitempty"`
}

type SyncResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Summary SyncSummary  `json:"summary"`
	Results []SyncResult `json:"results"`
}

// CertificateFilter narrows GET /api/gmail/certificates. Empty fields match
// everything.
type CertificateFilter struct {
	Platform string `form:"platform"`
	Skill    string `form:"skill"`
	Query    string `form:"q"`
}

type UserSummary struct {
	Email             string `json:"email"`
	TotalCertificates int    `json:"total_certificates"`
}

type CertificatesResponse struct {
	Success         bool                      `json:"success"`
	User            UserSummary               `json:"user"`
	PlatformSummary map[string]int            `json:"platform_summary"`
	Certificates    []*certdomain.Certificate `json:"certificates"`
}

type LatestCertificate struct {
	Platform   string    `json:"platform"`
	CourseName string    `json:"course_name"`
	IssueDate  time.Time `json:"issue_date"`
}

type Stats struct {
	TotalCertificates  int                `json:"total_certificates"`
	Platforms          map[string]int     `json:"platforms"`
	RecentCertificates int                `json:"recent_certificates"`
	SkillsSummary      map[string]int     `json:"skills_summary"`
	LatestCertificate  *LatestCertificate `json:"latest_certificate"`
}

type StatsResponse struct {
	Success   bool   `json:"success"`
	UserEmail string `json:"user_email"`
	Stats     Stats  `json:"stats"`
}

type SearchHit struct {
	Certificate *certdomain.Certificate `json:"certificate"`
	Distance    float64                 `json:"distance"`
}

type SearchResponse struct {
	Success bool        `json:"success"`
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}
