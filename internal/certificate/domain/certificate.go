package domain

import (
	"strings"
	"time"

	"certhub-backend/pkg/extractor"
)

// Certificate is one detected course-completion email. MessageID is the
// idempotency key: the store rejects a second row for the same message.
type Certificate struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"index;not null"`
	MessageID    string     `json:"message_id" gorm:"uniqueIndex;not null"`
	Platform     string     `json:"platform" gorm:"index;not null"`
	CourseName   string     `json:"course_name" gorm:"not null"`
	IssueDate    time.Time  `json:"issue_date" gorm:"type:date"`
	DownloadLink *string    `json:"download_link"`
	Skills       string     `json:"skills" gorm:"not null"`
	EmailSubject string     `json:"email_subject"`
	IndexedAt    *time.Time `json:"-" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SkillList splits the stored comma-joined skills.
func (c *Certificate) SkillList() []string {
	return extractor.SplitSkills(c.Skills)
}

// HasSkill matches case-insensitively against the individual skills.
func (c *Certificate) HasSkill(skill string) bool {
	for _, s := range c.SkillList() {
		if strings.EqualFold(s, strings.TrimSpace(skill)) {
			return true
		}
	}
	return false
}
