package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type feishuContent struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type feishuMessage struct {
	MsgType string        `json:"msg_type"`
	Content feishuContent `json:"content"`
}

type feishuReply struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Feishu posts text messages to a custom bot webhook.
type Feishu struct {
	http    *http.Client
	webhook string
	title   string
}

func NewFeishu(webhook, title string, timeout time.Duration) *Feishu {
	return &Feishu{
		http:    &http.Client{Timeout: timeout},
		webhook: webhook,
		title:   title,
	}
}

func (f *Feishu) Send(ctx context.Context, text string) error {
	body, err := sonic.Marshal(feishuMessage{
		MsgType: "text",
		Content: feishuContent{Title: f.title, Text: text},
	})
	if err != nil {
		return errors.Wrap(err, "feishu: marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhook, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "feishu: new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "feishu: post")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("feishu: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var reply feishuReply
	if len(raw) > 0 && sonic.Unmarshal(raw, &reply) == nil && reply.Code != 0 {
		return errors.Errorf("feishu: code %d: %s", reply.Code, reply.Msg)
	}
	return nil
}
