package models

// TransformationModel is one content-addressed cache entry. Rows are written
// once on first successful generation and never mutated; a logically
// different result gets a different fingerprint via the per-action version
// marker in the normalized options.
type TransformationModel struct {
	Base
	Fingerprint string  `json:"fingerprint" gorm:"uniqueIndex;size:64;not null"`
	Action      string  `json:"action"      gorm:"index;size:16;not null"`
	Format      string  `json:"format"      gorm:"size:16;not null"` // text | structured
	ResultText  string  `json:"result_text" gorm:"type:longtext"`
	ResultDoc   JSONMap `json:"result_doc"  gorm:"type:longtext;serializer:json"`
	AudioData   []byte  `json:"-"           gorm:"type:longblob"`
	AudioMime   string  `json:"audio_mime"  gorm:"size:64"`
	AudioVoice  string  `json:"audio_voice" gorm:"size:64"`
}

func (TransformationModel) TableName() string { return "ai_transformations" }

// HasAudio reports whether a speech artifact was stored with this entry.
func (m *TransformationModel) HasAudio() bool {
	return len(m.AudioData) > 0
}
