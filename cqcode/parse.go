package cqcode

import (
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var tagRunPattern = regexp.MustCompile(`^\[CQ:([a-z0-9_]+)(?:,([^\]]+))?\]$`)

// Constructor 把解析出的基础消息段包装为具体类型
type Constructor func(base Base) Tag

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register 注册（或覆盖）某个类型的构造函数
func Register(typ string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = ctor
}

// Registered 报告类型是否已注册
func Registered(typ string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[typ]
	return ok
}

func lookup(typ string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[typ]
	return ctor, ok
}

// Parser 解析 CQ 码。日志器为空时使用全局 zap 日志器
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	return &Parser{log: log}
}

var defaultParser = &Parser{}

// Parse 使用默认解析器解析 CQ 码字符串
func Parse(s string) Message { return defaultParser.Parse(s) }

// ParseSegments 使用默认解析器转换数组格式
func ParseSegments(segs []*Segment) Message { return defaultParser.ParseSegments(segs) }

// ParseJSON 使用默认解析器解析 JSON 形式的 message 字段
func ParseJSON(raw []byte) Message { return defaultParser.ParseJSON(raw) }

// Build 按注册表创建消息段，未知类型返回 *Generic
func Build(typ string, data *Data) Tag { return defaultParser.Build(typ, data) }

// Clone 浅拷贝一个消息段，保持具体类型
func Clone(t Tag) Tag {
	if t == nil {
		return nil
	}
	return defaultParser.Build(t.Type(), t.Data().Clone())
}

func (p *Parser) logger() *zap.SugaredLogger {
	if p.log != nil {
		return p.log.Sugar()
	}
	return zap.L().Named("cqcode").Sugar()
}

func (p *Parser) Build(typ string, data *Data) Tag {
	base := NewBase(typ, data)
	ctor, ok := lookup(typ)
	if !ok {
		p.logger().Warnf("cq tag type %q not supported, keeping it as generic", typ)
		return &Generic{base}
	}
	return ctor(base)
}

// Parse 解析 CQ 码字符串。无法识别的片段按普通文本处理，相邻文本合并为一个文本段
func (p *Parser) Parse(s string) Message {
	var (
		out     Message
		pending strings.Builder
	)
	flush := func() {
		if pending.Len() == 0 {
			return
		}
		out = append(out, p.Build("text", NewData("text", Unescape(pending.String()))))
		pending.Reset()
	}

	for _, run := range splitRuns(s) {
		m := tagRunPattern.FindStringSubmatch(run)
		if m == nil {
			pending.WriteString(run)
			continue
		}
		flush()
		out = append(out, p.Build(m[1], parsePairs(m[2])))
	}
	flush()
	return out
}

// ParseSegments 转换已解码的数组格式，跳过空元素
func (p *Parser) ParseSegments(segs []*Segment) Message {
	segs = lo.Filter(segs, func(s *Segment, _ int) bool { return s != nil })
	out := make(Message, 0, len(segs))
	for _, s := range segs {
		data := s.Data
		if data == nil {
			data = &Data{}
		}
		out = append(out, p.Build(s.Type, data))
	}
	return out
}

// ParseJSON 接受 JSON 字符串（CQ 码）或 {type,data} 数组
func (p *Parser) ParseJSON(raw []byte) Message {
	res := gjson.ParseBytes(raw)
	switch {
	case res.Type == gjson.String:
		return p.Parse(res.Str)
	case res.IsArray():
		return p.parseArray(res)
	default:
		return nil
	}
}

func (p *Parser) parseArray(res gjson.Result) Message {
	var out Message
	res.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		data := &Data{}
		item.Get("data").ForEach(func(k, v gjson.Result) bool {
			data.Set(k.String(), jsonValue(v))
			return true
		})
		out = append(out, p.Build(item.Get("type").String(), data))
		return true
	})
	return out
}

// segmentsFromJSON 用于嵌套消息（如 node 的 content），只有全部元素都是消息段时才转换
func segmentsFromJSON(v gjson.Result) (Message, bool) {
	ok := true
	v.ForEach(func(_, item gjson.Result) bool {
		ok = item.IsObject() && item.Get("type").Exists()
		return ok
	})
	if !ok {
		return nil, false
	}
	return defaultParser.parseArray(v), true
}

// splitRuns 在每个 "[CQ:" 之前和每个 "]" 之后切分，不产生空片段
func splitRuns(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			if i > start && strings.HasPrefix(s[i:], "[CQ:") {
				out = append(out, s[start:i])
				start = i
			}
		case ']':
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// parsePairs 按逗号拆分字段，再按第一个等号拆分键值。缺少等号的字段值为空串
func parsePairs(body string) *Data {
	data := &Data{}
	if body == "" {
		return data
	}
	for _, pair := range strings.Split(body, ",") {
		k, v, _ := strings.Cut(pair, "=")
		data.Set(k, Unescape(v))
	}
	return data
}
