package guild

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleMember  = "MEMBER"
	RoleOfficer = "OFFICER"
	RoleLeader  = "LEADER"
)

type Member struct {
	GuildID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"guild_id"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role        string    `gorm:"column:role;not null" json:"role"`
	DisplayName string    `gorm:"column:display_name" json:"display_name,omitempty"`
	JoinedAt    time.Time `gorm:"column:joined_at;not null" json:"joined_at"`
}

func (Member) TableName() string { return "guild_member" }

// CanManage reports whether the role may manage guild quest blueprints.
func (m Member) CanManage() bool {
	return m.Role == RoleOfficer || m.Role == RoleLeader
}

type Character struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	GuildID   uuid.UUID `gorm:"type:uuid;not null;index" json:"guild_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Class     string    `gorm:"column:class" json:"class,omitempty"`
	Level     int       `gorm:"column:level" json:"level"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Character) TableName() string { return "guild_character" }
