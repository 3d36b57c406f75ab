package models

import (
	"time"

	"github.com/google/uuid"
)

// AnnouncementStatus is the publication state of an announcement.
type AnnouncementStatus string

const (
	AnnouncementDraft     AnnouncementStatus = "draft"
	AnnouncementScheduled AnnouncementStatus = "scheduled"
	AnnouncementSent      AnnouncementStatus = "sent"
)

// AudienceAll addresses every connected viewer.
const AudienceAll = "all"

// Announcement is a message pushed to live viewers, immediately or at a scheduled time.
type Announcement struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	Audience    string             `json:"audience"`
	Status      AnnouncementStatus `json:"status"`
	ScheduledAt *time.Time         `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time         `json:"published_at,omitempty"`
	CreatedBy   uuid.UUID          `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Reaches reports whether a viewer on team sees the announcement.
func (a *Announcement) Reaches(team string, role Role) bool {
	if a.Audience == "" || a.Audience == AudienceAll || role == RoleAdmin {
		return true
	}
	return a.Audience == team
}
