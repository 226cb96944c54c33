package repository

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Optional 部分更新字段：
//   - Set=false：未提供，保持不变
//   - Set=true, Value=nil：显式置空
//   - Set=true, Value!=nil：更新为该值
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some 构造一个有值的 Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null 构造一个显式置空的 Optional
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON 字段出现即 Set=true；null 表示置空
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// arg 转为 SQL 参数（nil -> NULL）
func (o Optional[T]) arg() any {
	if o.Value == nil {
		return nil
	}
	return *o.Value
}
