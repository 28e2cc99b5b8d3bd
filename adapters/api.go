package adapters

import (
	"context"

	"github.com/sealdice/cqsocket/cqcode"
)

// normalizeMessage accepts a string, a single tag or a cqcode.Message.
func normalizeMessage(message any) any {
	switch m := message.(type) {
	case cqcode.Tag:
		return cqcode.Message{m}
	case []cqcode.Tag:
		return cqcode.Message(m)
	default:
		return m
	}
}

// SendPrivateMsg sends to a friend. autoEscape sends a string message as plain text.
func (c *Client) SendPrivateMsg(ctx context.Context, userID int64, message any, autoEscape bool) (int64, error) {
	var resp MessageID
	err := c.Call(ctx, "send_private_msg", map[string]any{
		"user_id":     userID,
		"message":     normalizeMessage(message),
		"auto_escape": autoEscape,
	}, &resp)
	return resp.MessageID, err
}

func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, message any, autoEscape bool) (int64, error) {
	var resp MessageID
	err := c.Call(ctx, "send_group_msg", map[string]any{
		"group_id":    groupID,
		"message":     normalizeMessage(message),
		"auto_escape": autoEscape,
	}, &resp)
	return resp.MessageID, err
}

// SendMsg picks the target by messageType ("private" or "group").
func (c *Client) SendMsg(ctx context.Context, messageType string, id int64, message any) (int64, error) {
	params := map[string]any{
		"message_type": messageType,
		"message":      normalizeMessage(message),
	}
	if messageType == "group" {
		params["group_id"] = id
	} else {
		params["user_id"] = id
	}

	var resp MessageID
	err := c.Call(ctx, "send_msg", params, &resp)
	return resp.MessageID, err
}

func (c *Client) DeleteMsg(ctx context.Context, messageID int64) error {
	return c.Call(ctx, "delete_msg", map[string]any{"message_id": messageID}, nil)
}

func (c *Client) GetMsg(ctx context.Context, messageID int64) (*MessageDetail, error) {
	resp := &MessageDetail{}
	if err := c.Call(ctx, "get_msg", map[string]any{"message_id": messageID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetForwardMsg(ctx context.Context, id string) ([]ForwardNode, error) {
	var resp struct {
		Messages []ForwardNode `json:"messages"`
	}
	if err := c.Call(ctx, "get_forward_msg", map[string]any{"message_id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendGroupForwardMsg expects node tags built with cqcode.NewNode or cqcode.NewNodeRef.
func (c *Client) SendGroupForwardMsg(ctx context.Context, groupID int64, nodes cqcode.Message) (*ForwardID, error) {
	resp := &ForwardID{}
	err := c.Call(ctx, "send_group_forward_msg", map[string]any{
		"group_id": groupID,
		"messages": nodes,
	}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) SetGroupKick(ctx context.Context, groupID, userID int64, rejectAddRequest bool) error {
	return c.Call(ctx, "set_group_kick", map[string]any{
		"group_id":           groupID,
		"user_id":            userID,
		"reject_add_request": rejectAddRequest,
	}, nil)
}

// SetGroupBan mutes a member for duration seconds; zero lifts the ban.
func (c *Client) SetGroupBan(ctx context.Context, groupID, userID, duration int64) error {
	return c.Call(ctx, "set_group_ban", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"duration": duration,
	}, nil)
}

func (c *Client) SetGroupWholeBan(ctx context.Context, groupID int64, enable bool) error {
	return c.Call(ctx, "set_group_whole_ban", map[string]any{
		"group_id": groupID,
		"enable":   enable,
	}, nil)
}

func (c *Client) SetGroupAdmin(ctx context.Context, groupID, userID int64, enable bool) error {
	return c.Call(ctx, "set_group_admin", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"enable":   enable,
	}, nil)
}

func (c *Client) SetGroupCard(ctx context.Context, groupID, userID int64, card string) error {
	return c.Call(ctx, "set_group_card", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"card":     card,
	}, nil)
}

func (c *Client) SetGroupName(ctx context.Context, groupID int64, name string) error {
	return c.Call(ctx, "set_group_name", map[string]any{
		"group_id":   groupID,
		"group_name": name,
	}, nil)
}

func (c *Client) SetGroupLeave(ctx context.Context, groupID int64, isDismiss bool) error {
	return c.Call(ctx, "set_group_leave", map[string]any{
		"group_id":   groupID,
		"is_dismiss": isDismiss,
	}, nil)
}

// SetGroupSpecialTitle needs owner permission; duration -1 means permanent.
func (c *Client) SetGroupSpecialTitle(ctx context.Context, groupID, userID int64, title string, duration int64) error {
	return c.Call(ctx, "set_group_special_title", map[string]any{
		"group_id":      groupID,
		"user_id":       userID,
		"special_title": title,
		"duration":      duration,
	}, nil)
}

// SetFriendAddRequest answers a request.friend event using its flag.
func (c *Client) SetFriendAddRequest(ctx context.Context, flag string, approve bool, remark string) error {
	return c.Call(ctx, "set_friend_add_request", map[string]any{
		"flag":    flag,
		"approve": approve,
		"remark":  remark,
	}, nil)
}

// SetGroupAddRequest answers a request.group event; subType is add or invite.
func (c *Client) SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error {
	return c.Call(ctx, "set_group_add_request", map[string]any{
		"flag":     flag,
		"sub_type": subType,
		"approve":  approve,
		"reason":   reason,
	}, nil)
}

func (c *Client) GetLoginInfo(ctx context.Context) (*LoginInfo, error) {
	resp := &LoginInfo{}
	if err := c.Call(ctx, "get_login_info", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetStrangerInfo(ctx context.Context, userID int64, noCache bool) (*StrangerInfo, error) {
	resp := &StrangerInfo{}
	err := c.Call(ctx, "get_stranger_info", map[string]any{
		"user_id":  userID,
		"no_cache": noCache,
	}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetFriendList(ctx context.Context) ([]FriendInfo, error) {
	var resp []FriendInfo
	if err := c.Call(ctx, "get_friend_list", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetGroupInfo(ctx context.Context, groupID int64, noCache bool) (*GroupInfo, error) {
	resp := &GroupInfo{}
	err := c.Call(ctx, "get_group_info", map[string]any{
		"group_id": groupID,
		"no_cache": noCache,
	}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetGroupList(ctx context.Context) ([]GroupInfo, error) {
	var resp []GroupInfo
	if err := c.Call(ctx, "get_group_list", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID int64, noCache bool) (*GroupMemberInfo, error) {
	resp := &GroupMemberInfo{}
	err := c.Call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"no_cache": noCache,
	}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetGroupMemberList(ctx context.Context, groupID int64) ([]GroupMemberInfo, error) {
	var resp []GroupMemberInfo
	if err := c.Call(ctx, "get_group_member_list", map[string]any{"group_id": groupID}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetVersionInfo(ctx context.Context) (*VersionInfo, error) {
	resp := &VersionInfo{}
	if err := c.Call(ctx, "get_version_info", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	resp := &Status{}
	if err := c.Call(ctx, "get_status", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CanSendImage(ctx context.Context) (bool, error) {
	var resp canSend
	err := c.Call(ctx, "can_send_image", nil, &resp)
	return resp.Yes, err
}

func (c *Client) CanSendRecord(ctx context.Context) (bool, error) {
	var resp canSend
	err := c.Call(ctx, "can_send_record", nil, &resp)
	return resp.Yes, err
}
