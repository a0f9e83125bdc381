package cache

import "errors"

// ErrStoreUnavailable 错误：重试后仍无法获取存储连接
var ErrStoreUnavailable = errors.New("cache store unavailable")

// ErrWriteFailed 错误：重试后仍无法写入缓存结果
var ErrWriteFailed = errors.New("cache write failed")

// ErrInvalidTable 错误：表名不是合法的 SQL 标识符
var ErrInvalidTable = errors.New("invalid cache table name")
