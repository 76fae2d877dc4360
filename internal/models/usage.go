package models

// UsageEventModel is an append-only record of one pipeline invocation.
// Events are never deduplicated; cache hits are logged at zero cost so an
// audit can reconstruct actual provider spend per user.
type UsageEventModel struct {
	Base
	UserID     string  `json:"user_id"     gorm:"index;size:36;not null"`
	Action     string  `json:"action"      gorm:"size:16;not null"`
	ProviderID string  `json:"provider_id" gorm:"size:64"`
	Model      string  `json:"model"       gorm:"size:128"`
	Cost       string  `json:"cost"        gorm:"size:32;not null"` // exact decimal string
	Cached     bool    `json:"cached"`
	Coalesced  bool    `json:"coalesced"`
	Speech     bool    `json:"speech"`
	Degraded   bool    `json:"degraded"`
	Metadata   JSONMap `json:"metadata"    gorm:"type:longtext;serializer:json"`
}

func (UsageEventModel) TableName() string { return "usage_events" }
