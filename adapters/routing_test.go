package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestEventPath(t *testing.T) {
	cases := []struct {
		frame string
		want  []string
	}{
		{`{"post_type":"message","message_type":"private","sub_type":"friend"}`, []string{"message", "private"}},
		{`{"post_type":"message_sent","message_type":"group"}`, []string{"message_sent", "group"}},
		{`{"post_type":"notice","notice_type":"group_increase","sub_type":"approve"}`, []string{"notice", "group_increase", "approve"}},
		{`{"post_type":"notice","notice_type":"group_recall"}`, []string{"notice", "group_recall"}},
		{`{"post_type":"notice","notice_type":"notify","sub_type":"poke","user_id":1,"target_id":2}`, []string{"notice", "notify", "poke", "friend"}},
		{`{"post_type":"notice","notice_type":"notify","sub_type":"poke","group_id":3}`, []string{"notice", "notify", "poke", "group"}},
		{`{"post_type":"notice","notice_type":"notify","sub_type":"honor","honor_type":"talkative"}`, []string{"notice", "notify", "honor"}},
		{`{"post_type":"request","request_type":"friend","flag":"f"}`, []string{"request", "friend"}},
		{`{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"enable"}`, []string{"meta_event", "lifecycle", "enable"}},
		{`{"post_type":"unknown"}`, nil},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, eventPath(gjson.Parse(tc.frame)), tc.frame)
	}
}
