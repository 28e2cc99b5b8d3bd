package cqcode

func init() {
	Register("text", func(b Base) Tag { return &Text{b} })
	Register("face", func(b Base) Tag { return &Face{b} })
	Register("record", func(b Base) Tag { return &Record{b} })
	Register("video", func(b Base) Tag { return &Video{b} })
	Register("at", func(b Base) Tag { return &At{b} })
	Register("share", func(b Base) Tag { return &Share{b} })
	Register("music", func(b Base) Tag {
		if b.data.String("type") == "custom" {
			return &MusicCustom{b}
		}
		return &Music{b}
	})
	Register("image", func(b Base) Tag { return &Image{b} })
	Register("reply", func(b Base) Tag { return &Reply{b} })
	Register("poke", func(b Base) Tag { return &Poke{b} })
	Register("gift", func(b Base) Tag { return &Gift{b} })
	Register("forward", func(b Base) Tag { return &Forward{b} })
	Register("node", func(b Base) Tag { return &Node{b} })
	Register("xml", func(b Base) Tag { return &XML{b} })
	Register("json", func(b Base) Tag { return &JSON{b} })
	Register("cardimage", func(b Base) Tag { return &CardImage{b} })
	Register("tts", func(b Base) Tag { return &TTS{b} })
	Register("location", func(b Base) Tag { return &Location{b} })
	Register("contact", func(b Base) Tag { return &Contact{b} })
	Register("redbag", func(b Base) Tag { return &RedBag{b} })
	Register("anonymous", func(b Base) Tag { return &Anonymous{b} })
	Register("dice", func(b Base) Tag { return &Dice{b} })
	Register("rps", func(b Base) Tag { return &RPS{b} })
	Register("shake", func(b Base) Tag { return &Shake{b} })
}

// Attr 工厂函数的可选字段
type Attr func(d *Data)

// With 追加一个可选字段，value 为 nil 时忽略
func With(key string, value any) Attr {
	return func(d *Data) { d.Set(key, value) }
}

func fill(data *Data, attrs []Attr) *Data {
	for _, a := range attrs {
		a(data)
	}
	return data
}

func int64Of(d *Data, key string) int64 {
	n, _ := d.Int64(key)
	return n
}

// Text 纯文本
type Text struct{ Base }

func NewText(text string) *Text {
	return &Text{NewBase("text", NewData("text", text))}
}

func (t *Text) Text() string { return t.data.String("text") }

// String 文本段输出转义后的原文而不是 CQ 码
func (t *Text) String() string { return Escape(t.Text(), false) }

// Face QQ 表情
type Face struct{ Base }

func NewFace(id int64) *Face {
	return &Face{NewBase("face", NewData("id", id))}
}

func (f *Face) ID() int64 { return int64Of(f.data, "id") }

// Record 语音。可选字段 magic, cache, proxy, timeout
type Record struct{ Base }

func NewRecord(file string, attrs ...Attr) *Record {
	return &Record{NewBase("record", fill(NewData("file", file), attrs))}
}

func (r *Record) File() string { return r.data.String("file") }

func (r *Record) Magic() bool {
	v, _ := r.data.Bool("magic")
	return v
}

// Video 短视频。可选字段 cover, c
type Video struct{ Base }

func NewVideo(file string, attrs ...Attr) *Video {
	return &Video{NewBase("video", fill(NewData("file", file), attrs))}
}

func (v *Video) File() string  { return v.data.String("file") }
func (v *Video) Cover() string { return v.data.String("cover") }

// At @某人，qq 为 all 时表示全体成员
type At struct{ Base }

func NewAt(qq int64, attrs ...Attr) *At {
	return &At{NewBase("at", fill(NewData("qq", qq), attrs))}
}

func NewAtAll() *At {
	return &At{NewBase("at", NewData("qq", "all"))}
}

func (a *At) QQ() string   { return a.data.String("qq") }
func (a *At) IsAll() bool  { return a.QQ() == "all" }
func (a *At) Name() string { return a.data.String("name") }

// UserID 全体成员时为 0
func (a *At) UserID() int64 {
	if a.IsAll() {
		return 0
	}
	return int64Of(a.data, "qq")
}

// Share 链接分享。可选字段 content, image
type Share struct{ Base }

func NewShare(url, title string, attrs ...Attr) *Share {
	return &Share{NewBase("share", fill(NewData("url", url, "title", title), attrs))}
}

func (s *Share) URL() string     { return s.data.String("url") }
func (s *Share) Title() string   { return s.data.String("title") }
func (s *Share) Content() string { return s.data.String("content") }
func (s *Share) Image() string   { return s.data.String("image") }

// Music 平台音乐分享，kind 为 qq / 163 / xm
type Music struct{ Base }

func NewMusic(kind string, id int64) *Music {
	return &Music{NewBase("music", NewData("type", kind, "id", id))}
}

func (m *Music) Kind() string { return m.data.String("type") }
func (m *Music) ID() int64    { return int64Of(m.data, "id") }

// MusicCustom 自定义音乐分享（type=custom）。可选字段 content, image
type MusicCustom struct{ Base }

func NewMusicCustom(url, audio, title string, attrs ...Attr) *MusicCustom {
	return &MusicCustom{NewBase("music", fill(NewData("type", "custom", "url", url, "audio", audio, "title", title), attrs))}
}

func (m *MusicCustom) URL() string     { return m.data.String("url") }
func (m *MusicCustom) Audio() string   { return m.data.String("audio") }
func (m *MusicCustom) Title() string   { return m.data.String("title") }
func (m *MusicCustom) Content() string { return m.data.String("content") }

// Image 图片。可选字段 type (flash/show), url, cache, id, c
type Image struct{ Base }

func NewImage(file string, attrs ...Attr) *Image {
	return &Image{NewBase("image", fill(NewData("file", file), attrs))}
}

func (i *Image) File() string    { return i.data.String("file") }
func (i *Image) URL() string     { return i.data.String("url") }
func (i *Image) Flash() bool     { return i.data.String("type") == "flash" }
func (i *Image) Subtype() string { return i.data.String("subType") }

// Reply 回复，引用一条已有消息或自定义内容
type Reply struct{ Base }

func NewReply(id int64) *Reply {
	return &Reply{NewBase("reply", NewData("id", id))}
}

// NewReplyCustom 自定义回复内容。可选字段 time, seq
func NewReplyCustom(text string, qq int64, attrs ...Attr) *Reply {
	return &Reply{NewBase("reply", fill(NewData("text", text, "qq", qq), attrs))}
}

func (r *Reply) ID() int64      { return int64Of(r.data, "id") }
func (r *Reply) Text() string   { return r.data.String("text") }
func (r *Reply) QQ() int64      { return int64Of(r.data, "qq") }
func (r *Reply) IsCustom() bool { return r.data.Get("id") == nil }

// Poke 戳一戳
type Poke struct{ Base }

func NewPoke(qq int64) *Poke {
	return &Poke{NewBase("poke", NewData("qq", qq))}
}

func (p *Poke) QQ() int64 { return int64Of(p.data, "qq") }

// Gift 礼物，仅群聊
type Gift struct{ Base }

func NewGift(qq, id int64) *Gift {
	return &Gift{NewBase("gift", NewData("qq", qq, "id", id))}
}

func (g *Gift) QQ() int64 { return int64Of(g.data, "qq") }
func (g *Gift) ID() int64 { return int64Of(g.data, "id") }

// Forward 合并转发，id 通过 get_forward_msg 获取内容
type Forward struct{ Base }

func NewForward(id string) *Forward {
	return &Forward{NewBase("forward", NewData("id", id))}
}

func (f *Forward) ID() string { return f.data.String("id") }

// Node 合并转发节点，引用已有消息 (id) 或自定义内容 (name, user_id, content)
type Node struct{ Base }

func NewNodeRef(id int64) *Node {
	return &Node{NewBase("node", NewData("id", id))}
}

// NewNode content 可以是字符串或 Message。可选字段 seq
func NewNode(name string, userID int64, content any, attrs ...Attr) *Node {
	return &Node{NewBase("node", fill(NewData("name", name, "user_id", userID, "content", content), attrs))}
}

func (n *Node) IsReference() bool { return n.data.Get("id") != nil }
func (n *Node) ID() int64         { return int64Of(n.data, "id") }
func (n *Node) Name() string      { return n.data.String("name") }

func (n *Node) UserID() int64 {
	if id, err := n.data.Int64("user_id"); err == nil {
		return id
	}
	return int64Of(n.data, "uin")
}

// Content 字符串内容会按 CQ 码解析
func (n *Node) Content() Message {
	switch c := n.data.Get("content").(type) {
	case Message:
		return c
	case string:
		return Parse(c)
	default:
		return nil
	}
}

// XML 富文本消息
type XML struct{ Base }

func NewXML(data string, attrs ...Attr) *XML {
	return &XML{NewBase("xml", fill(NewData("data", data), attrs))}
}

func (x *XML) Payload() string { return x.data.String("data") }
func (x *XML) ResID() int64    { return int64Of(x.data, "resid") }

// JSON 富文本消息，resid 默认为 0
type JSON struct{ Base }

func NewJSON(data string, attrs ...Attr) *JSON {
	return &JSON{NewBase("json", fill(NewData("data", data, "resid", 0), attrs))}
}

func (j *JSON) Payload() string { return j.data.String("data") }
func (j *JSON) ResID() int64    { return int64Of(j.data, "resid") }

// CardImage 装逼大图。可选字段 minwidth, minheight, maxwidth, maxheight, source, icon
type CardImage struct{ Base }

func NewCardImage(file string, attrs ...Attr) *CardImage {
	return &CardImage{NewBase("cardimage", fill(NewData("file", file), attrs))}
}

func (c *CardImage) File() string { return c.data.String("file") }

// TTS 文本转语音
type TTS struct{ Base }

func NewTTS(text string) *TTS {
	return &TTS{NewBase("tts", NewData("text", text))}
}

func (t *TTS) Text() string { return t.data.String("text") }

// Location 位置。可选字段 title, content
type Location struct{ Base }

func NewLocation(lat, lon float64, attrs ...Attr) *Location {
	return &Location{NewBase("location", fill(NewData("lat", lat, "lon", lon), attrs))}
}

func (l *Location) Lat() float64 {
	v, _ := l.data.Float64("lat")
	return v
}

func (l *Location) Lon() float64 {
	v, _ := l.data.Float64("lon")
	return v
}

func (l *Location) Title() string { return l.data.String("title") }

// Contact 推荐好友或群，kind 为 qq / group
type Contact struct{ Base }

func NewContact(kind string, id int64) *Contact {
	return &Contact{NewBase("contact", NewData("type", kind, "id", id))}
}

func (c *Contact) Kind() string { return c.data.String("type") }
func (c *Contact) ID() int64    { return int64Of(c.data, "id") }

// RedBag 红包，只能接收
type RedBag struct{ Base }

func NewRedBag(title string) *RedBag {
	return &RedBag{NewBase("redbag", NewData("title", title))}
}

func (r *RedBag) Title() string { return r.data.String("title") }

// Anonymous 匿名发消息。可选字段 ignore
type Anonymous struct{ Base }

func NewAnonymous(attrs ...Attr) *Anonymous {
	return &Anonymous{NewBase("anonymous", fill(NewData(), attrs))}
}

func (a *Anonymous) Ignore() bool {
	v, _ := a.data.Bool("ignore")
	return v
}

type Dice struct{ Base }

func NewDice() *Dice { return &Dice{NewBase("dice", NewData())} }

func (d *Dice) Result() int64 { return int64Of(d.data, "result") }

type RPS struct{ Base }

func NewRPS() *RPS { return &RPS{NewBase("rps", NewData())} }

func (r *RPS) Result() int64 { return int64Of(r.data, "result") }

// Shake 窗口抖动
type Shake struct{ Base }

func NewShake() *Shake { return &Shake{NewBase("shake", NewData())} }

// NewCustom 构造任意类型的消息段，已注册的类型仍返回具体类型
func NewCustom(typ string, attrs ...Attr) Tag {
	return Build(typ, fill(NewData(), attrs))
}
