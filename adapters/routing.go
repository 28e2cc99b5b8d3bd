package adapters

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// route publishes one event frame. Handlers receive the decoded frame as
// the first argument; message frames also carry their parsed segments.
func (c *Client) route(ctx context.Context, payload []byte) {
	frame := gjson.ParseBytes(payload)
	if !frame.IsObject() {
		c.log().Warnf("event frame is not an object: %s", payload)
		return
	}

	var body map[string]any
	if err := sonic.Unmarshal(payload, &body); err != nil {
		c.log().Warnf("decode event frame failed: %v", err)
		return
	}

	path := eventPath(frame)
	if path == nil {
		c.log().Warnf("unknown post_type %q", frame.Get("post_type").String())
		return
	}

	switch path[0] {
	case "message", "message_sent":
		tags := c.parser.ParseJSON([]byte(frame.Get("message").Raw))
		c.bus.HandleSegments(ctx, path, body, tags)
		return
	case "meta_event":
		c.trackMeta(frame, body)
	}
	c.bus.HandleSegments(ctx, path, body)
}

// eventPath maps a frame onto taxonomy segments, nil for unknown post types.
func eventPath(frame gjson.Result) []string {
	sub := frame.Get("sub_type").String()
	withSub := func(segs ...string) []string {
		if sub != "" {
			segs = append(segs, sub)
		}
		return segs
	}

	switch postType := frame.Get("post_type").String(); postType {
	case "message", "message_sent":
		return []string{postType, frame.Get("message_type").String()}
	case "notice":
		noticeType := frame.Get("notice_type").String()
		if noticeType != "notify" {
			return withSub("notice", noticeType)
		}
		if sub == "poke" {
			target := "friend"
			if frame.Get("group_id").Exists() {
				target = "group"
			}
			return []string{"notice", "notify", "poke", target}
		}
		return withSub("notice", "notify")
	case "request":
		return withSub("request", frame.Get("request_type").String())
	case "meta_event":
		return withSub("meta_event", frame.Get("meta_event_type").String())
	default:
		return nil
	}
}

func (c *Client) trackMeta(frame gjson.Result, body map[string]any) {
	switch frame.Get("meta_event_type").String() {
	case "lifecycle":
		if id := frame.Get("self_id"); id.Exists() {
			c.selfID.Store(id.Int())
		}
	case "heartbeat":
		if st, ok := body["status"].(map[string]any); ok {
			c.status.Store(&st)
		}
	}
}
