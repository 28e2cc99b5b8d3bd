package adapters

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sealdice/cqsocket/cqcode"
)

var (
	ErrNotConnected = errors.New("cqsocket: api socket not connected")
	ErrSendVetoed   = errors.New("cqsocket: request vetoed by api.preSend handler")
	ErrTimeout      = errors.New("cqsocket: api request timed out")
	ErrClosed       = errors.New("cqsocket: client closed")
)

// Channel 标识两条 websocket 连接
type Channel string

const (
	ChannelAPI   Channel = "api"
	ChannelEvent Channel = "event"
)

// SocketEvent 随 socket.* 事件分发
type SocketEvent struct {
	Channel Channel
	URL     string
	Code    int    // 关闭码，仅 close/error
	Reason  string // 关闭原因
	Err     error
	Attempt int // 重连次数，首次连接为 0
}

// APIRequest 发往 /api 的请求帧，api.preSend 的处理器可修改 Params
type APIRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// APIResponse /api 返回的响应帧
type APIResponse struct {
	Status  string          `json:"status"`
	RetCode int64           `json:"retcode"`
	Message string          `json:"msg"`
	Wording string          `json:"wording"`
	Data    json.RawMessage `json:"data"`
	Echo    json.RawMessage `json:"echo"`

	err error
}

// APIResponseEvent 随 api.response 事件分发
type APIResponseEvent struct {
	Request  *APIRequest
	Response *APIResponse
}

// APIError retcode 大于 1 时返回
type APIError struct {
	Action  string
	Status  string
	RetCode int64
	Message string
	Wording string
}

func (e *APIError) Error() string {
	msg := e.Wording
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		return fmt.Sprintf("cqsocket: %s failed: status=%s retcode=%d", e.Action, e.Status, e.RetCode)
	}
	return fmt.Sprintf("cqsocket: %s failed: %s (retcode=%d)", e.Action, msg, e.RetCode)
}

// MessageID send_*_msg 的返回值
type MessageID struct {
	MessageID int64 `json:"message_id"`
}

// ForwardID send_group_forward_msg 的返回值
type ForwardID struct {
	MessageID int64  `json:"message_id"`
	ForwardID string `json:"forward_id"`
}

// Sender 消息发送者
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
	Sex      string `json:"sex"`
	Age      int32  `json:"age"`
	Role     string `json:"role"`
	Title    string `json:"title"`
}

// MessageDetail get_msg 的返回值
type MessageDetail struct {
	MessageID   int64           `json:"message_id"`
	RealID      int64           `json:"real_id"`
	MessageType string          `json:"message_type"`
	GroupID     int64           `json:"group_id"`
	Time        int64           `json:"time"`
	Sender      Sender          `json:"sender"`
	RawMessage  json.RawMessage `json:"message"`
}

// Tags 解析 message 字段，兼容字符串与数组两种格式
func (m *MessageDetail) Tags() cqcode.Message {
	return cqcode.ParseJSON(m.RawMessage)
}

// ForwardNode get_forward_msg 返回的单条消息
type ForwardNode struct {
	Content json.RawMessage `json:"content"`
	Sender  Sender          `json:"sender"`
	Time    int64           `json:"time"`
}

func (n *ForwardNode) Tags() cqcode.Message {
	return cqcode.ParseJSON(n.Content)
}

type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

type StrangerInfo struct {
	UserID    int64  `json:"user_id"`
	Nickname  string `json:"nickname"`
	Sex       string `json:"sex"`
	Age       int32  `json:"age"`
	QID       string `json:"qid"`
	Level     int32  `json:"level"`
	LoginDays int32  `json:"login_days"`
}

type FriendInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}

type GroupInfo struct {
	GroupID         int64  `json:"group_id"`
	GroupName       string `json:"group_name"`
	GroupMemo       string `json:"group_memo"`
	GroupCreateTime uint32 `json:"group_create_time"`
	GroupLevel      uint32 `json:"group_level"`
	MemberCount     int32  `json:"member_count"`
	MaxMemberCount  int32  `json:"max_member_count"`
}

type GroupMemberInfo struct {
	GroupID         int64  `json:"group_id"`
	UserID          int64  `json:"user_id"`
	Nickname        string `json:"nickname"`
	Card            string `json:"card"`
	Sex             string `json:"sex"`
	Age             int32  `json:"age"`
	Area            string `json:"area"`
	JoinTime        int64  `json:"join_time"`
	LastSentTime    int64  `json:"last_sent_time"`
	Level           string `json:"level"`
	Role            string `json:"role"`
	Unfriendly      bool   `json:"unfriendly"`
	Title           string `json:"title"`
	TitleExpireTime int64  `json:"title_expire_time"`
	CardChangeable  bool   `json:"card_changeable"`
}

type VersionInfo struct {
	AppName         string `json:"app_name"`
	AppVersion      string `json:"app_version"`
	ProtocolVersion string `json:"protocol_version"`
}

// Status get_status 的返回值，同时由心跳事件更新
type Status struct {
	AppInitialized bool `json:"app_initialized"`
	AppEnabled     bool `json:"app_enabled"`
	PluginsGood    bool `json:"plugins_good"`
	AppGood        bool `json:"app_good"`
	Online         bool `json:"online"`
	Good           bool `json:"good"`
}

type canSend struct {
	Yes bool `json:"yes"`
}
