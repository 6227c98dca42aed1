package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicateSubmission is returned when a source link is already in the catalog.
var ErrDuplicateSubmission = errors.New("music source already submitted")

// ErrDuplicateUser 用户名或邮箱已被占用
var ErrDuplicateUser = errors.New("username or email already exists")

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func duplicated(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
