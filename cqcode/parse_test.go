package cqcode

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseTextAndTag(t *testing.T) {
	as := assert.New(t)

	msg := Parse("hello [CQ:at,qq=123] world")
	require.Len(t, msg, 3)

	as.Equal("text", msg[0].Type())
	as.Equal("hello ", msg[0].Get("text"))

	at, ok := msg[1].(*At)
	require.True(t, ok, "at should be upgraded to *At, got %T", msg[1])
	as.Equal("123", at.Get("qq"), "values parsed from strings stay strings")
	as.EqualValues(123, at.UserID())
	as.False(at.IsAll())

	as.Equal(" world", msg[2].Get("text"))
}

func TestParseTagWithoutData(t *testing.T) {
	msg := Parse("[CQ:shake]")
	require.Len(t, msg, 1)
	assert.IsType(t, &Shake{}, msg[0])
	assert.Zero(t, msg[0].Data().Len())
}

func TestParseUnknownTypeDegrades(t *testing.T) {
	as := assert.New(t)
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewParser(zap.New(core))

	msg := p.Parse("[CQ:unknown_type,foo=bar]")
	require.Len(t, msg, 1)

	generic, ok := msg[0].(*Generic)
	require.True(t, ok)
	as.Equal("unknown_type", generic.Type())
	as.Equal(map[string]any{"foo": "bar"}, generic.Data().Map())
	as.Equal(1, logs.Len(), "unknown type should be reported once")
}

func TestParseTypeWithDigitsAndUnderscore(t *testing.T) {
	as := assert.New(t)

	msg := Parse("x[CQ:market_face2,id=9,key=k]y")
	require.Len(t, msg, 3)
	as.Equal("market_face2", msg[1].Type())
	as.IsType(&Generic{}, msg[1])
	as.Equal("9", msg[1].Get("id"))
	as.Equal("x[CQ:market_face2,id=9,key=k]y", msg.String())
}

func TestParseMalformedRunIsText(t *testing.T) {
	as := assert.New(t)

	msg := Parse("a [CQ:at,qq=1 b")
	require.Len(t, msg, 1)
	as.Equal("a [CQ:at,qq=1 b", msg[0].Get("text"))

	msg = Parse("[CQ:AT,qq=1]x")
	require.Len(t, msg, 1, "upper case type does not match the tag grammar")
	as.Equal("[CQ:AT,qq=1]x", msg[0].Get("text"))
}

func TestParseMergesLiteralRuns(t *testing.T) {
	msg := Parse("a]b]c[CQ:face,id=1]")
	require.Len(t, msg, 2)
	assert.Equal(t, "a]b]c", msg[0].Get("text"))
	assert.EqualValues(t, 1, msg[1].(*Face).ID())
}

func TestParseUnescapesValues(t *testing.T) {
	as := assert.New(t)

	msg := Parse("[CQ:share,title=震惊&#44;小伙睡觉前居然...,url=http://baidu.com/?a=1&amp;b=2]&#91;尾巴&#93;")
	require.Len(t, msg, 2)

	share := msg[0].(*Share)
	as.Equal("震惊,小伙睡觉前居然...", share.Title())
	as.Equal("http://baidu.com/?a=1&b=2", share.URL())
	as.Equal([]string{"title", "url"}, share.Data().Keys(), "field order follows the wire")
	as.Equal("[尾巴]", msg[1].Get("text"))
}

func TestParsePairEdgeCases(t *testing.T) {
	as := assert.New(t)

	msg := Parse("[CQ:image,file=a=b.png,flag]")
	require.Len(t, msg, 1)
	as.Equal("a=b.png", msg[0].Get("file"), "split on the first equals sign only")
	v, ok := msg[0].Data().Lookup("flag")
	as.True(ok)
	as.Equal("", v)
}

func TestMusicCustomSelectedByType(t *testing.T) {
	msg := Parse("[CQ:music,type=custom,url=u,audio=a,title=t][CQ:music,type=163,id=28949129]")
	require.Len(t, msg, 2)
	assert.IsType(t, &MusicCustom{}, msg[0])
	assert.IsType(t, &Music{}, msg[1])
	assert.EqualValues(t, 28949129, msg[1].(*Music).ID())
}

func TestParseSegmentsSkipsNil(t *testing.T) {
	segs := []*Segment{
		{Type: "text", Data: NewData("text", "hi")},
		nil,
		{Type: "at", Data: NewData("qq", int64(10))},
		{Type: "face"},
	}

	msg := ParseSegments(segs)
	require.Len(t, msg, 3)
	assert.IsType(t, &Text{}, msg[0])
	assert.EqualValues(t, 10, msg[1].(*At).UserID())
	assert.IsType(t, &Face{}, msg[2])
}

func TestParseJSONArrayKeepsTypes(t *testing.T) {
	as := assert.New(t)
	raw := []byte(`[{"type":"text","data":{"text":"a&b"}},{"type":"image","data":{"url":"http://x","file":"x.jpg","subType":0}},null]`)

	msg := ParseJSON(raw)
	require.Len(t, msg, 2)
	as.Equal("a&b", msg[0].(*Text).Text(), "array form is not unescaped")

	img := msg[1].(*Image)
	as.Equal([]string{"url", "file", "subType"}, img.Data().Keys())
	as.Equal(int64(0), img.Get("subType"))
}

func TestParseJSONStringForm(t *testing.T) {
	msg := ParseJSON([]byte(`"[CQ:face,id=14]hi"`))
	require.Len(t, msg, 2)
	assert.EqualValues(t, 14, msg[0].(*Face).ID())
	assert.Equal(t, "hi", msg[1].(*Text).Text())

	assert.Nil(t, ParseJSON([]byte(`{}`)))
}

func TestParseJSONNestedNodeContent(t *testing.T) {
	raw := []byte(`[{"type":"node","data":{"name":"seal","uin":"10001","content":[{"type":"text","data":{"text":"inner"}}]}}]`)

	msg := ParseJSON(raw)
	require.Len(t, msg, 1)

	node := msg[0].(*Node)
	assert.False(t, node.IsReference())
	assert.EqualValues(t, 10001, node.UserID())
	content := node.Content()
	require.Len(t, content, 1)
	assert.Equal(t, "inner", content.PlainText())
}

func TestSegmentUnmarshal(t *testing.T) {
	var segs []*Segment
	err := sonic.Unmarshal([]byte(`[{"type":"reply","data":{"id":"42","qq":1}},null]`), &segs)
	require.NoError(t, err)

	msg := ParseSegments(segs)
	require.Len(t, msg, 1)
	reply := msg[0].(*Reply)
	assert.EqualValues(t, 42, reply.ID())
	assert.Equal(t, []string{"id", "qq"}, reply.Data().Keys())
}
