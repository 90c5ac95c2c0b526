package dao

import (
	"errors"

	"github.com/ego-component/egorm"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// InitTables 建表。唯一索引是幂等与并发收敛的基础，不能省略
func InitTables(db *egorm.Component) error {
	return db.AutoMigrate(
		&ChannelBinding{},
		&TemplateEntry{},
		&DispatchRecord{},
		&DispatchStatusEvent{},
		&ExportAuditEvent{},
	)
}

// isUniqueConstraintError 检查是否是唯一索引冲突错误
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	me := new(mysql.MySQLError)
	if ok := errors.As(err, &me); ok {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	return false
}
