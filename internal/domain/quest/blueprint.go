package quest

import (
	"time"

	"github.com/google/uuid"
)

const (
	VisibilityGuild   = "GUILD"
	VisibilityPrivate = "PRIVATE"
)

type Blueprint struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GuildID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"guild_id"`
	CreatorID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"creator_id"`
	Title          string     `gorm:"column:title;not null" json:"title"`
	Summary        *string    `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Visibility     string     `gorm:"column:visibility;not null" json:"visibility"`
	Archived       bool       `gorm:"column:archived;not null;index" json:"archived"`
	LastEditorID   *uuid.UUID `gorm:"type:uuid;column:last_editor_id" json:"last_editor_id,omitempty"`
	LastEditorName string     `gorm:"column:last_editor_name" json:"last_editor_name,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (Blueprint) TableName() string { return "quest_blueprint" }

// BlueprintNode ids are chosen by the editor and stay stable across graph edits.
type BlueprintNode struct {
	BlueprintID  uuid.UUID    `gorm:"type:uuid;primaryKey" json:"blueprint_id"`
	ID           string       `gorm:"column:id;primaryKey" json:"id"`
	Title        string       `gorm:"column:title;not null" json:"title"`
	Description  string       `gorm:"column:description;type:text" json:"description,omitempty"`
	NodeType     string       `gorm:"column:node_type" json:"node_type,omitempty"`
	PosX         float64      `gorm:"column:pos_x" json:"pos_x"`
	PosY         float64      `gorm:"column:pos_y" json:"pos_y"`
	SortOrder    int          `gorm:"column:sort_order;not null" json:"sort_order"`
	Requirements Requirements `gorm:"column:requirements" json:"requirements"`
	Metadata     NodeMeta     `gorm:"column:metadata" json:"metadata"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (BlueprintNode) TableName() string { return "quest_blueprint_node" }

func (n BlueprintNode) IsGroup() bool { return n.Metadata.IsGroup }
func (n BlueprintNode) IsFinal() bool { return n.Metadata.IsFinal }

type BlueprintLink struct {
	BlueprintID  uuid.UUID      `gorm:"type:uuid;primaryKey;index:idx_quest_link_pair,unique,priority:1" json:"blueprint_id"`
	ID           string         `gorm:"column:id;primaryKey" json:"id"`
	ParentNodeID string         `gorm:"column:parent_node_id;not null;index:idx_quest_link_pair,unique,priority:2" json:"parent_node_id"`
	ChildNodeID  string         `gorm:"column:child_node_id;not null;index:idx_quest_link_pair,unique,priority:3" json:"child_node_id"`
	Conditions   LinkConditions `gorm:"column:conditions" json:"conditions"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (BlueprintLink) TableName() string { return "quest_blueprint_link" }

// EdgeKind separates links that take part in progress aggregation from
// links that only order the display.
type EdgeKind string

const (
	EdgeDependency EdgeKind = "dependency"
	EdgeSequencing EdgeKind = "sequencing"
)

func (l BlueprintLink) Kind() EdgeKind {
	if l.Conditions.Sequencing {
		return EdgeSequencing
	}
	return EdgeDependency
}
