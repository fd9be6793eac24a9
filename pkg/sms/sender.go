// Package sms 短信服务
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

// 模板键
const (
	TemplateRefundSuccess  = "refund_success"
	TemplateRefundFailed   = "refund_failed"
	TemplateRefundRejected = "refund_rejected"
)

// Sender 短信发送器接口
type Sender interface {
	Send(ctx context.Context, phone, templateKey string, params map[string]string) error
}

// AliyunSender 阿里云短信发送器
type AliyunSender struct {
	client    *dysmsapi.Client
	signName  string
	templates map[string]string
}

// AliyunConfig 阿里云短信配置
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	RegionID        string // 默认 cn-hangzhou
	Templates       map[string]string
}

// NewAliyunSender 创建阿里云短信发送器
func NewAliyunSender(config *AliyunConfig) (*AliyunSender, error) {
	if config.RegionID == "" {
		config.RegionID = "cn-hangzhou"
	}

	client, err := dysmsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(config.AccessKeyID),
		AccessKeySecret: tea.String(config.AccessKeySecret),
		RegionId:        tea.String(config.RegionID),
		Endpoint:        tea.String("dysmsapi.aliyuncs.com"),
	})
	if err != nil {
		return nil, fmt.Errorf("创建阿里云短信客户端失败: %w", err)
	}

	return &AliyunSender{
		client:    client,
		signName:  config.SignName,
		templates: config.Templates,
	}, nil
}

// Send 按模板键发送短信
func (s *AliyunSender) Send(ctx context.Context, phone, templateKey string, params map[string]string) error {
	templateCode, ok := s.templates[templateKey]
	if !ok || templateCode == "" {
		return fmt.Errorf("短信模板 %s 未配置", templateKey)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("序列化参数失败: %w", err)
	}

	resp, err := s.client.SendSms(&dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(templateCode),
		TemplateParam: tea.String(string(paramsJSON)),
	})
	if err != nil {
		return fmt.Errorf("发送短信失败: %w", err)
	}

	if resp.Body == nil || tea.StringValue(resp.Body.Code) != "OK" {
		msg := "未知错误"
		if resp.Body != nil && resp.Body.Message != nil {
			msg = *resp.Body.Message
		}
		return fmt.Errorf("发送短信失败: %s", msg)
	}
	return nil
}

// MockSender 模拟短信发送器（用于开发/测试）
type MockSender struct {
	mu       sync.Mutex
	messages []MockMessage
}

// MockMessage 模拟消息
type MockMessage struct {
	Phone       string
	TemplateKey string
	Params      map[string]string
	SentAt      time.Time
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send 模拟发送
func (s *MockSender) Send(_ context.Context, phone, templateKey string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, MockMessage{
		Phone:       phone,
		TemplateKey: templateKey,
		Params:      params,
		SentAt:      time.Now(),
	})
	return nil
}

// Messages 已发送消息
func (s *MockSender) Messages() []MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MockMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// GetLastMessage 获取最后发送的消息
func (s *MockSender) GetLastMessage() *MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	msg := s.messages[len(s.messages)-1]
	return &msg
}
