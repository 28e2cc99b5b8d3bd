package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sealdice/cqsocket/cqcode"
	"github.com/sealdice/cqsocket/journal"
)

type messenger interface {
	SendGroupMsg(ctx context.Context, groupID int64, message any, autoEscape bool) (int64, error)
	SendPrivateMsg(ctx context.Context, userID int64, message any, autoEscape bool) (int64, error)
}

type history interface {
	Recent(n int) ([]*journal.Entry, error)
}

var commands = []string{"group", "private", "recent", "paths", "help", "quit"}

type shell struct {
	out     io.Writer
	sender  messenger
	history history
	paths   []string
	timeout time.Duration
}

func (s *shell) complete(line string) []string {
	return lo.Filter(commands, func(c string, _ int) bool {
		return strings.HasPrefix(c, line)
	})
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "":
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.out, "group <id> <message>    send a CQ-code message to a group")
		fmt.Fprintln(s.out, "private <id> <message>  send a CQ-code message to a friend")
		fmt.Fprintln(s.out, "recent [n]              show journaled messages")
		fmt.Fprintln(s.out, "paths                   list event paths")
		fmt.Fprintln(s.out, "quit")
	case "group", "private":
		s.send(ctx, name, rest)
	case "recent":
		s.recent(rest)
	case "paths":
		for _, p := range s.paths {
			fmt.Fprintln(s.out, p)
		}
	default:
		fmt.Fprintf(s.out, "未知命令: %s，输入 help 查看帮助\n", name)
	}
	return false
}

func (s *shell) send(ctx context.Context, kind, args string) {
	idText, text, ok := strings.Cut(args, " ")
	id, err := strconv.ParseInt(idText, 10, 64)
	if !ok || err != nil || strings.TrimSpace(text) == "" {
		fmt.Fprintf(s.out, "用法: %s <id> <message>\n", kind)
		return
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg := cqcode.Parse(text)
	var messageID int64
	if kind == "group" {
		messageID, err = s.sender.SendGroupMsg(ctx, id, msg, false)
	} else {
		messageID, err = s.sender.SendPrivateMsg(ctx, id, msg, false)
	}
	if err != nil {
		fmt.Fprintf(s.out, "发送失败: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "已发送 message_id=%d\n", messageID)
}

func (s *shell) recent(args string) {
	if s.history == nil {
		fmt.Fprintln(s.out, "未启用消息日志 (journal.path)")
		return
	}
	n := 10
	if args != "" {
		v, err := strconv.Atoi(args)
		if err != nil || v <= 0 {
			fmt.Fprintln(s.out, "用法: recent [n]")
			return
		}
		n = v
	}

	entries, err := s.history.Recent(n)
	if err != nil {
		fmt.Fprintf(s.out, "读取失败: %v\n", err)
		return
	}
	for _, e := range entries {
		fmt.Fprintln(s.out, formatEntry(e))
	}
}

func formatEntry(e *journal.Entry) string {
	ts := time.Unix(e.Time, 0).Format("01-02 15:04:05")
	where := lo.Ternary(e.GroupID != 0, fmt.Sprintf("群%d", e.GroupID), "私聊")
	who := lo.CoalesceOrEmpty(e.Nickname, strconv.FormatInt(e.UserID, 10))
	if e.Sent {
		who = "(self)"
	}
	return fmt.Sprintf("[%s] #%d %s %s: %s", ts, e.MessageID, where, who, e.Message)
}
