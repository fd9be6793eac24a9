package wechatpay

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidNotify 回调报文无法解析
var ErrInvalidNotify = errors.New("invalid notify payload")

// notifyEnvelope 回调通知外层报文
type notifyEnvelope struct {
	ID           string         `json:"id"`
	CreateTime   string         `json:"create_time"`
	EventType    string         `json:"event_type"`
	ResourceType string         `json:"resource_type"`
	Resource     NotifyResource `json:"resource"`
}

// NotifyResource 加密资源
type NotifyResource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	AssociatedData string `json:"associated_data"`
	Nonce          string `json:"nonce"`
	OriginalType   string `json:"original_type"`
}

// PaymentNotification 支付结果通知
type PaymentNotification struct {
	ExternalRef string
	Status      string
	TxnRef      string
}

// Success 是否支付成功
func (n *PaymentNotification) Success() bool {
	return n.Status == TradeStateSuccess
}

// RefundNotification 退款结果通知
type RefundNotification struct {
	ExternalRef string
	Status      string
}

// Success 是否退款成功
func (n *RefundNotification) Success() bool {
	return n.Status == RefundStatusSuccess
}

// ParsePaymentNotify 解密并解析支付回调
func (c *Client) ParsePaymentNotify(body []byte) (*PaymentNotification, error) {
	var resource struct {
		OutTradeNo    string `json:"out_trade_no"`
		TransactionID string `json:"transaction_id"`
		TradeState    string `json:"trade_state"`
	}
	if err := c.decodeResource(body, &resource); err != nil {
		return nil, err
	}
	if resource.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: missing out_trade_no", ErrInvalidNotify)
	}
	return &PaymentNotification{
		ExternalRef: resource.OutTradeNo,
		Status:      resource.TradeState,
		TxnRef:      resource.TransactionID,
	}, nil
}

// ParseRefundNotify 解密并解析退款回调
func (c *Client) ParseRefundNotify(body []byte) (*RefundNotification, error) {
	var resource struct {
		OutTradeNo   string `json:"out_trade_no"`
		OutRefundNo  string `json:"out_refund_no"`
		RefundStatus string `json:"refund_status"`
	}
	if err := c.decodeResource(body, &resource); err != nil {
		return nil, err
	}
	if resource.OutRefundNo == "" {
		return nil, fmt.Errorf("%w: missing out_refund_no", ErrInvalidNotify)
	}
	return &RefundNotification{
		ExternalRef: resource.OutRefundNo,
		Status:      resource.RefundStatus,
	}, nil
}

func (c *Client) decodeResource(body []byte, out interface{}) error {
	var env notifyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNotify, err)
	}
	plaintext, err := DecryptResource(c.config.APIv3Key, &env.Resource)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNotify, err)
	}
	return nil
}

// DecryptResource 使用 APIv3 密钥解密回调资源（AEAD_AES_256_GCM）
func DecryptResource(apiV3Key string, res *NotifyResource) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(res.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotify, err)
	}
	gcm, err := newGCM(apiV3Key)
	if err != nil {
		return nil, err
	}
	if len(res.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrInvalidNotify)
	}
	plaintext, err := gcm.Open(nil, []byte(res.Nonce), ciphertext, []byte(res.AssociatedData))
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt failed", ErrInvalidNotify)
	}
	return plaintext, nil
}

// EncryptResource 加密回调资源，供联调与测试构造回调报文
func EncryptResource(apiV3Key, associatedData string, plaintext []byte) (*NotifyResource, error) {
	gcm, err := newGCM(apiV3Key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	for i := range nonce {
		nonce[i] = letters[int(nonce[i])%len(letters)]
	}
	return &NotifyResource{
		Algorithm:      "AEAD_AES_256_GCM",
		Ciphertext:     base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, []byte(associatedData))),
		AssociatedData: associatedData,
		Nonce:          string(nonce),
	}, nil
}

// BuildNotifyBody 构造完整回调报文
func BuildNotifyBody(apiV3Key, eventType string, resource interface{}) ([]byte, error) {
	plaintext, err := json.Marshal(resource)
	if err != nil {
		return nil, err
	}
	res, err := EncryptResource(apiV3Key, "transaction", plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(notifyEnvelope{
		ID:           "EV-" + generateNonceStr(),
		EventType:    eventType,
		ResourceType: "encrypt-resource",
		Resource:     *res,
	})
}

func newGCM(apiV3Key string) (cipher.AEAD, error) {
	if len(apiV3Key) != 32 {
		return nil, fmt.Errorf("api v3 key must be 32 bytes")
	}
	block, err := aes.NewCipher([]byte(apiV3Key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
