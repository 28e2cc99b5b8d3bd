package cqcode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// Data 有序的键值表，保留字段插入顺序，序列化时按顺序输出
type Data struct {
	keys   []string
	values map[string]any
}

// NewData 以 key, value, key, value... 的形式构造。值为 nil 的字段会被忽略
func NewData(kv ...any) *Data {
	d := &Data{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		d.Set(key, kv[i+1])
	}
	return d
}

// Get 返回字段值，不存在时为 nil
func (d *Data) Get(key string) any {
	if d == nil || d.values == nil {
		return nil
	}
	return d.values[key]
}

// Lookup 与 Get 相同，但额外报告字段是否存在
func (d *Data) Lookup(key string) (any, bool) {
	if d == nil || d.values == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Set 设置字段并返回旧值。value 为 nil 时删除该字段
func (d *Data) Set(key string, value any) any {
	if value == nil {
		return d.Delete(key)
	}
	if d.values == nil {
		d.values = make(map[string]any)
	}
	prev, ok := d.values[key]
	if !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return prev
}

// Delete 删除字段并返回旧值
func (d *Data) Delete(key string) any {
	if d == nil || d.values == nil {
		return nil
	}
	prev, ok := d.values[key]
	if !ok {
		return nil
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return prev
}

func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys 按插入顺序返回所有字段名
func (d *Data) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Range 按顺序遍历，fn 返回 false 时停止
func (d *Data) Range(fn func(key string, value any) bool) {
	if d == nil {
		return
	}
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// Map 返回一份无序拷贝
func (d *Data) Map() map[string]any {
	out := make(map[string]any, d.Len())
	d.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}

// Clone 浅拷贝
func (d *Data) Clone() *Data {
	out := &Data{}
	d.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// String 以 CQ 码中的文本形式返回字段值，不存在时为空串
func (d *Data) String(key string) string {
	v := d.Get(key)
	if v == nil {
		return ""
	}
	return formatValue(v)
}

// Int64 将字段强制转换为整数。字符串形式（来自 CQ 码字符串解析）同样接受
func (d *Data) Int64(key string) (int64, error) {
	switch v := d.Get(key).(type) {
	case nil:
		return 0, fmt.Errorf("cqcode: field %q not set", key)
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("cqcode: field %q is %T, not a number", key, v)
	}
}

func (d *Data) Float64(key string) (float64, error) {
	switch v := d.Get(key).(type) {
	case nil:
		return 0, fmt.Errorf("cqcode: field %q not set", key)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cqcode: field %q is %T, not a number", key, v)
	}
}

// Bool 接受 true/false、1/0 以及 yes/no
func (d *Data) Bool(key string) (bool, error) {
	switch v := d.Get(key).(type) {
	case nil:
		return false, fmt.Errorf("cqcode: field %q not set", key)
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
		return false, fmt.Errorf("cqcode: field %q=%q is not a bool", key, v)
	default:
		return false, fmt.Errorf("cqcode: field %q is %T, not a bool", key, v)
	}
}

// MarshalJSON 按字段顺序输出 JSON 对象
func (d *Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	d.Range(func(k string, v any) bool {
		var kb, vb []byte
		if kb, err = sonic.Marshal(k); err != nil {
			return false
		}
		if vb, err = sonic.Marshal(v); err != nil {
			return false
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 解析 JSON 对象，保留字段顺序
func (d *Data) UnmarshalJSON(b []byte) error {
	res := gjson.ParseBytes(b)
	if res.Type == gjson.Null {
		return nil
	}
	if !res.IsObject() {
		return errors.New("cqcode: segment data must be an object")
	}
	*d = Data{}
	res.ForEach(func(key, value gjson.Result) bool {
		d.Set(key.String(), jsonValue(value))
		return true
	})
	return nil
}

// jsonValue 把 gjson 结果转为 Data 中允许的值类型。整数保持为 int64
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return v.Str
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n
			}
		}
		return v.Num
	default:
		if v.IsArray() {
			if msg, ok := segmentsFromJSON(v); ok {
				return msg
			}
		}
		return v.Raw
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
