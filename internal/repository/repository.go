// Package repository 提供数据访问层
package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNoRowsAffected 条件更新未命中任何行
// 调用方据此判断并发冲突或前置条件不满足
var ErrNoRowsAffected = errors.New("no rows affected")

// IsNotFound 是否记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// checkAffected 将 RowsAffected 为 0 的结果转换为 ErrNoRowsAffected
func checkAffected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
