package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Student struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	Name         string  `json:"name" gorm:"not null;size:200"`
	Email        string  `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string  `json:"-" gorm:"not null;size:255"`
	Phone        *string `json:"phone" gorm:"size:30"`
	ImageURL     *string `json:"image_url" gorm:"size:500"`
	RefreshToken *string `json:"-" gorm:"type:text"`

	Registrations []Registration `json:"-" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (Student) TableName() string {
	return "students"
}

type Collaborator struct {
	ID    string `json:"id" gorm:"primaryKey;size:36"`
	Name  string `json:"name" gorm:"not null;size:200"`
	Email string `json:"email" gorm:"uniqueIndex;not null;size:255"`

	Tickets []Ticket `json:"-" gorm:"foreignKey:CollaboratorID;constraint:OnDelete:SET NULL"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Collaborator) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (Collaborator) TableName() string {
	return "collaborators"
}

// Ticket is a single-use enrollment code. Used flips to true exactly once,
// in the same transaction as the registration that redeems it.
type Ticket struct {
	ID             string  `json:"id" gorm:"primaryKey;size:36"`
	Code           string  `json:"code" gorm:"uniqueIndex;not null;size:64"`
	Used           bool    `json:"used" gorm:"not null;default:false"`
	CollaboratorID *string `json:"collaborator_id" gorm:"size:36;index"`

	Registrations []Registration `json:"-" gorm:"foreignKey:TicketID;constraint:OnDelete:SET NULL"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (Ticket) TableName() string {
	return "tickets"
}
