package store

import "time"

type OfferRecord struct {
	Id        uint64    `gorm:"primaryKey;autoIncrement;type:bigint(20);not null"`
	Maker     string    `gorm:"type:varchar(48);not null;index"`
	MintA     string    `gorm:"type:varchar(48);not null"`
	MintB     string    `gorm:"type:varchar(48);not null"`
	SizeA     uint64    `gorm:"type:bigint(20) unsigned;not null"`
	SizeB     uint64    `gorm:"type:bigint(20) unsigned;not null"`
	Authority string    `gorm:"type:varchar(48);not null"`
	Action    string    `gorm:"type:varchar(8);not null"`
	Signature string    `gorm:"type:varchar(120);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type TradeRecord struct {
	Id          uint64    `gorm:"primaryKey;autoIncrement;type:bigint(20);not null"`
	Maker       string    `gorm:"type:varchar(48);not null;index"`
	Taker       string    `gorm:"type:varchar(48);not null;index"`
	MintA       string    `gorm:"type:varchar(48);not null"`
	MintB       string    `gorm:"type:varchar(48);not null"`
	SizeA       uint64    `gorm:"type:bigint(20) unsigned;not null"`
	SizeB       uint64    `gorm:"type:bigint(20) unsigned;not null"`
	CreatorFees bool      `gorm:"not null"`
	Signature   string    `gorm:"type:varchar(120);not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

type History struct {
	Offers []*OfferRecord
	Trades []*TradeRecord
}
