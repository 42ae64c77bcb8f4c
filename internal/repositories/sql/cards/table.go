package cards

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const (
	tableName = "cards"
	createdAt = "CreatedAt"
	updatedAt = "UpdatedAt"
)

type Table struct {
	Uid           string          `gorm:"primaryKey;size:64"`
	Name          string          `gorm:"not null;index:idx_card_key"`
	Repository    string          `gorm:"not null;index:idx_card_key"`
	Version       string          `gorm:"not null;index:idx_card_key"`
	CardType      string          `gorm:"not null;index"`
	Tags          json.RawMessage `gorm:"type:json"`
	ArtifactUri   string          `gorm:"not null"`
	TrainedUri    string
	PortableUri   string
	ModelClass    string
	ModelType     string
	InterfaceName string
	DatacardUid   string
	RuncardUid    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Table) TableName() string {
	return tableName
}

func (Table) BeforeCreate(tx *gorm.DB) (err error) {
	tx.Statement.SetColumn(createdAt, time.Now())
	return
}

func (Table) BeforeUpdate(tx *gorm.DB) (err error) {
	tx.Statement.SetColumn(updatedAt, time.Now())
	return
}
