package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Dao interface {
	SaveOffer(record *OfferRecord) error
	SaveTrade(record *TradeRecord) error
	SelectHistory(wallet string, limit int) (*History, error)
}

type MysqlDao struct {
	db *gorm.DB
}

func Dsn(url, scheme, user, passwd string) string {
	return user + ":" + passwd + "@tcp(" + url + ")/" + scheme + "?charset=utf8mb4&parseTime=True"
}

func NewDao(url, scheme, user, passwd string) (*MysqlDao, error) {
	Logger := logger.Default
	Logger = Logger.LogMode(logger.Warn)
	db, err := gorm.Open(mysql.Open(Dsn(url, scheme, user, passwd)), &gorm.Config{Logger: Logger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&OfferRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &MysqlDao{db: db}, nil
}

func (dao *MysqlDao) SaveOffer(record *OfferRecord) error {
	return dao.db.Create(record).Error
}

func (dao *MysqlDao) SaveTrade(record *TradeRecord) error {
	return dao.db.Create(record).Error
}

// SelectHistory returns the latest offers made by wallet and the trades it took part in.
func (dao *MysqlDao) SelectHistory(wallet string, limit int) (*History, error) {
	history := &History{
		Offers: make([]*OfferRecord, 0),
		Trades: make([]*TradeRecord, 0),
	}
	res := dao.db.Where("maker = ?", wallet).Order("id desc").Limit(limit).Find(&history.Offers)
	if res.Error != nil {
		return nil, res.Error
	}
	res = dao.db.Where("maker = ? OR taker = ?", wallet, wallet).Order("id desc").Limit(limit).Find(&history.Trades)
	if res.Error != nil {
		return nil, res.Error
	}
	return history, nil
}
