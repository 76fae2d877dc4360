package models

// TransformHistoryModel records that a user ran a transformation in a course
// context. The composite unique index is the natural idempotency key:
// repeated identical invocations upsert into a single row.
//
// CourseID/LessonID use "" (not NULL) for an absent context, because MySQL
// treats NULLs in a unique index as distinct and the upsert would stop
// deduplicating.
type TransformHistoryModel struct {
	Base
	UserID           string  `json:"user_id"           gorm:"uniqueIndex:idx_history_identity;size:36;not null"`
	CourseID         string  `json:"course_id"         gorm:"uniqueIndex:idx_history_identity;size:36;not null;default:''"`
	LessonID         string  `json:"lesson_id"         gorm:"uniqueIndex:idx_history_identity;size:36;not null;default:''"`
	TransformationID string  `json:"transformation_id" gorm:"uniqueIndex:idx_history_identity;size:36;not null"`
	Action           string  `json:"action"            gorm:"size:16;not null"`
	Excerpt          string  `json:"excerpt"           gorm:"size:200"`
	OptionsUsed      JSONMap `json:"options_used"      gorm:"type:longtext;serializer:json"`
}

func (TransformHistoryModel) TableName() string { return "transform_history" }
