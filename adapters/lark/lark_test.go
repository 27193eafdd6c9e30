package lark

import (
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

func strPtr(s string) *string { return &s }

func TestStringValue(t *testing.T) {
	if got := stringValue(nil); got != "" {
		t.Errorf("stringValue(nil) = %q, want empty", got)
	}
	if got := stringValue(strPtr("abc")); got != "abc" {
		t.Errorf("stringValue(&\"abc\") = %q, want \"abc\"", got)
	}
}

func TestExtractSenderID(t *testing.T) {
	tests := []struct {
		name   string
		sender *larkim.EventSender
		want   string
	}{
		{"nil sender", nil, ""},
		{"nil sender id", &larkim.EventSender{}, ""},
		{
			"prefers user id",
			&larkim.EventSender{SenderId: &larkim.UserId{UserId: strPtr("u1"), OpenId: strPtr("o1")}},
			"u1",
		},
		{
			"falls back to open id",
			&larkim.EventSender{SenderId: &larkim.UserId{UserId: strPtr(""), OpenId: strPtr("o1")}},
			"o1",
		},
		{
			"empty both",
			&larkim.EventSender{SenderId: &larkim.UserId{UserId: strPtr(""), OpenId: strPtr("")}},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractSenderID(tt.sender); got != tt.want {
				t.Errorf("extractSenderID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMessageContentText(t *testing.T) {
	msg := &larkim.EventMessage{
		MessageType: strPtr(larkim.MsgTypeText),
		Content:     strPtr(`{"text":"hello world"}`),
	}
	if got := extractMessageContent(msg); got != "hello world" {
		t.Errorf("extractMessageContent() = %q, want %q", got, "hello world")
	}
}

func TestExtractMessageContentNonText(t *testing.T) {
	msg := &larkim.EventMessage{
		MessageType: strPtr("image"),
		Content:     strPtr(`{"image_key":"abc"}`),
	}
	want := `{"image_key":"abc"}`
	if got := extractMessageContent(msg); got != want {
		t.Errorf("extractMessageContent() = %q, want %q", got, want)
	}
}

func TestExtractMessageContentEmpty(t *testing.T) {
	if got := extractMessageContent(nil); got != "" {
		t.Errorf("extractMessageContent(nil) = %q, want empty", got)
	}
	if got := extractMessageContent(&larkim.EventMessage{}); got != "" {
		t.Errorf("extractMessageContent(empty) = %q, want empty", got)
	}
}
