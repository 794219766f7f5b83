// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap 是存入 jsonb 列的通用键值映射。
// 贡献内容的 "extra" 元数据是开放结构，因此这里不做键的白名单限制，
// 保留键的保护在 pipeline 的元数据组装处完成。
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer 接口，将映射序列化为 JSON 存储。
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner 接口，从数据库读出的 JSON 反序列化为映射。
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 JSONMap", value)
	}
	return json.Unmarshal(data, m)
}

// GormDataType 指定该类型映射到 jsonb 列。
func (JSONMap) GormDataType() string {
	return "jsonb"
}

// GetString 以字符串形式取出一个键，值缺失或非字符串时返回空串。
func (m JSONMap) GetString(key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// GetInt 以整数形式取出一个键。JSON 反序列化会把数字还原为 float64，这里做统一转换。
func (m JSONMap) GetInt(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Clone 返回映射的浅拷贝，调用方可以安全地覆盖键而不影响原映射。
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
