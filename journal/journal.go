// Package journal keeps recently seen messages in a buntdb store so that
// replies, recalls and forwards can be resolved without another API call.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"

	"github.com/sealdice/cqsocket/events"
)

var ErrNotFound = errors.New("journal: message not found")

const timeIndex = "time"

// Entry is one stored message. Message holds the CQ-code form.
type Entry struct {
	MessageID   int64  `json:"message_id"`
	MessageType string `json:"message_type"`
	GroupID     int64  `json:"group_id,omitempty"`
	UserID      int64  `json:"user_id"`
	Nickname    string `json:"nickname,omitempty"`
	Time        int64  `json:"time"`
	Message     string `json:"message"`
	Sent        bool   `json:"sent,omitempty"`
}

type Journal struct {
	db  *buntdb.DB
	ttl time.Duration
	log *zap.Logger
}

// Open opens (or creates) the store at path; ":memory:" keeps it in RAM.
// Entries expire after ttl, zero keeps them forever.
func Open(path string, ttl time.Duration, log *zap.Logger) (*Journal, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if err := db.CreateIndex(timeIndex, "msg:*", buntdb.IndexJSON("time")); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create index: %w", err)
	}
	return &Journal{db: db, ttl: ttl, log: log}, nil
}

func (j *Journal) logger() *zap.SugaredLogger {
	if j.log != nil {
		return j.log.Sugar()
	}
	return zap.L().Named("journal").Sugar()
}

func msgKey(id int64) string {
	return "msg:" + strconv.FormatInt(id, 10)
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e, replacing any entry with the same message id.
func (j *Journal) Record(e *Entry) error {
	if e == nil {
		return nil
	}
	payload, err := sonic.Marshal(e)
	if err != nil {
		return err
	}

	var opts *buntdb.SetOptions
	if j.ttl > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: j.ttl}
	}
	return j.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(msgKey(e.MessageID), string(payload), opts)
		return err
	})
}

func (j *Journal) Get(id int64) (*Entry, error) {
	var value string
	err := j.db.View(func(tx *buntdb.Tx) error {
		var err error
		value, err = tx.Get(msgKey(id))
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e := &Entry{}
	if err := sonic.UnmarshalString(value, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]*Entry, error) {
	return j.recent(n, func(*Entry) bool { return true })
}

// RecentInGroup is Recent restricted to one group.
func (j *Journal) RecentInGroup(groupID int64, n int) ([]*Entry, error) {
	return j.recent(n, func(e *Entry) bool { return e.GroupID == groupID })
}

func (j *Journal) recent(n int, keep func(*Entry) bool) ([]*Entry, error) {
	var out []*Entry
	if n <= 0 {
		return out, nil
	}
	err := j.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Descend(timeIndex, func(_, value string) bool {
			e := &Entry{}
			if decodeErr = sonic.UnmarshalString(value, e); decodeErr != nil {
				return false
			}
			if keep(e) {
				out = append(out, e)
			}
			return len(out) < n
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	return out, err
}

// Attach records every message and message_sent event published on bus.
// The returned handles can be passed to Detach.
func (j *Journal) Attach(bus *events.Bus) ([]events.Handle, error) {
	var handles []events.Handle
	for _, path := range []string{"message", "message_sent"} {
		h, err := bus.On(path, j.onMessage)
		if err != nil {
			j.Detach(bus, handles)
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (j *Journal) Detach(bus *events.Bus, handles []events.Handle) {
	for _, h := range handles {
		if !bus.Off("message", h) {
			bus.Off("message_sent", h)
		}
	}
}

func (j *Journal) onMessage(_ context.Context, evt *events.Event) error {
	payload := evt.Payload()
	if payload == nil {
		return nil
	}

	e := &Entry{
		MessageID:   toInt64(payload["message_id"]),
		MessageType: lo.CoalesceOrEmpty(asString(payload["message_type"]), "private"),
		GroupID:     toInt64(payload["group_id"]),
		UserID:      toInt64(payload["user_id"]),
		Time:        toInt64(payload["time"]),
		Message:     evt.Tags().String(),
		Sent:        asString(payload["post_type"]) == "message_sent",
	}
	if e.Time == 0 {
		e.Time = time.Now().Unix()
	}
	if sender, ok := payload["sender"].(map[string]any); ok {
		e.Nickname = lo.CoalesceOrEmpty(asString(sender["card"]), asString(sender["nickname"]))
	}

	// Keep the handler registered even when a write fails.
	if err := j.Record(e); err != nil {
		j.logger().Warnf("record message %d failed: %v", e.MessageID, err)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int64:
		return x
	case int:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}
