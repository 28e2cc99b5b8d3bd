package cqcode

import (
	"bytes"
	"strings"

	"github.com/bytedance/sonic"
)

// Tag 一个消息段。类型在构造后不可变，数据可通过 Set 逐步修改
type Tag interface {
	Type() string
	Data() *Data
	// Get 读取字段。来自 CQ 码字符串的值总是字符串
	Get(key string) any
	// Set 写入字段并返回旧值，value 为 nil 时删除
	Set(key string, value any) any
	// String 返回 CQ 码形式
	String() string
}

// Base 所有消息段共享的实现，具体类型通过嵌入 Base 获得 Tag 接口
type Base struct {
	typ  string
	data *Data
}

// NewBase 用于在 Register 的构造函数之外直接创建消息段
func NewBase(typ string, data *Data) Base {
	if data == nil {
		data = &Data{}
	}
	return Base{typ: typ, data: data}
}

func (b Base) Type() string { return b.typ }

func (b Base) Data() *Data { return b.data }

func (b Base) Get(key string) any { return b.data.Get(key) }

func (b Base) Set(key string, value any) any { return b.data.Set(key, value) }

func (b Base) String() string {
	var sb strings.Builder
	sb.WriteString("[CQ:")
	sb.WriteString(b.typ)
	b.data.Range(func(k string, v any) bool {
		sb.WriteByte(',')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(Escape(formatValue(v), true))
		return true
	})
	sb.WriteByte(']')
	return sb.String()
}

func (b Base) MarshalJSON() ([]byte, error) {
	return marshalSegment(b.typ, b.data)
}

func marshalSegment(typ string, data *Data) ([]byte, error) {
	tb, err := sonic.Marshal(typ)
	if err != nil {
		return nil, err
	}
	db, err := data.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tb)
	buf.WriteString(`,"data":`)
	buf.Write(db)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Generic 未注册类型的消息段，保留原始类型与数据
type Generic struct{ Base }

// Segment 数组格式中的一个元素
type Segment struct {
	Type string `json:"type"`
	Data *Data  `json:"data"`
}

// Message 有序的消息段序列
type Message []Tag

// String 拼接为 CQ 码字符串
func (m Message) String() string {
	var sb strings.Builder
	for _, t := range m {
		if t == nil {
			continue
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}

// PlainText 只取文本段
func (m Message) PlainText() string {
	var sb strings.Builder
	for _, t := range m {
		if txt, ok := t.(*Text); ok {
			sb.WriteString(txt.Text())
		}
	}
	return sb.String()
}

// MarshalJSON 输出数组格式
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	n := 0
	for _, t := range m {
		if t == nil {
			continue
		}
		b, err := marshalSegment(t.Type(), t.Data())
		if err != nil {
			return nil, err
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
		n++
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Equal 比较类型与字段（以文本形式比较值）
func Equal(a, b Tag) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() || a.Data().Len() != b.Data().Len() {
		return false
	}
	eq := true
	a.Data().Range(func(k string, v any) bool {
		w, ok := b.Data().Lookup(k)
		if !ok || formatValue(v) != formatValue(w) {
			eq = false
		}
		return eq
	})
	return eq
}
