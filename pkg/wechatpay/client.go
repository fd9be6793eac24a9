// Package wechatpay 提供微信支付 APIv3 封装
package wechatpay

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.mch.weixin.qq.com"

// Config 微信支付配置
type Config struct {
	AppID           string
	MchID           string
	APIv3Key        string
	SerialNo        string
	PrivateKeyPath  string
	NotifyURL       string
	RefundNotifyURL string
	Mock            bool
	BaseURL         string
}

// Gateway 支付网关
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*ClientPayload, error)
	CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
	QueryPayment(ctx context.Context, outTradeNo string) (*QueryResult, error)
}

// Client 微信支付客户端
type Client struct {
	config     *Config
	privateKey *rsa.PrivateKey
	httpClient *http.Client

	mu       sync.Mutex
	mockPaid map[string]string
}

// NewClient 创建微信支付客户端，Mock 模式下不加载证书
func NewClient(config *Config) (*Client, error) {
	client := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		mockPaid:   make(map[string]string),
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Mock {
		return client, nil
	}

	key, err := loadPrivateKey(config.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	client.privateKey = key
	return client, nil
}

// PaymentIntentRequest JSAPI 下单请求
type PaymentIntentRequest struct {
	OutTradeNo  string
	Description string
	Amount      decimal.Decimal
	OpenID      string
}

// ClientPayload 小程序调起支付所需参数
type ClientPayload struct {
	AppID     string `json:"app_id"`
	TimeStamp string `json:"time_stamp"`
	NonceStr  string `json:"nonce_str"`
	Package   string `json:"package"`
	SignType  string `json:"sign_type"`
	PaySign   string `json:"pay_sign"`
}

// CreatePaymentIntent 创建支付单并返回调起参数
func (c *Client) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*ClientPayload, error) {
	var prepayID string
	if c.config.Mock {
		prepayID = "wx_mock_" + req.OutTradeNo
	} else {
		body := map[string]interface{}{
			"appid":        c.config.AppID,
			"mchid":        c.config.MchID,
			"description":  req.Description,
			"out_trade_no": req.OutTradeNo,
			"notify_url":   c.config.NotifyURL,
			"amount":       map[string]interface{}{"total": ToFen(req.Amount), "currency": "CNY"},
			"payer":        map[string]string{"openid": req.OpenID},
		}
		var resp struct {
			PrepayID string `json:"prepay_id"`
		}
		if err := c.do(ctx, http.MethodPost, "/v3/pay/transactions/jsapi", body, &resp); err != nil {
			return nil, err
		}
		prepayID = resp.PrepayID
	}

	payload := &ClientPayload{
		AppID:     c.config.AppID,
		TimeStamp: strconv.FormatInt(time.Now().Unix(), 10),
		NonceStr:  generateNonceStr(),
		Package:   "prepay_id=" + prepayID,
		SignType:  "RSA",
	}
	sign, err := c.sign(fmt.Sprintf("%s\n%s\n%s\n%s\n", payload.AppID, payload.TimeStamp, payload.NonceStr, payload.Package))
	if err != nil {
		return nil, err
	}
	payload.PaySign = sign
	return payload, nil
}

// RefundRequest 退款请求
type RefundRequest struct {
	OutTradeNo  string
	OutRefundNo string
	Reason      string
	Refund      decimal.Decimal
	Total       decimal.Decimal
	SubMchID    string
}

// RefundResponse 退款受理结果
type RefundResponse struct {
	RefundID    string `json:"refund_id"`
	OutRefundNo string `json:"out_refund_no"`
	Status      string `json:"status"`
}

// 退款状态
const (
	RefundStatusSuccess    = "SUCCESS"
	RefundStatusClosed     = "CLOSED"
	RefundStatusProcessing = "PROCESSING"
	RefundStatusAbnormal   = "ABNORMAL"
)

// CreateRefund 申请退款，结果以退款回调为准
func (c *Client) CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if c.config.Mock {
		return &RefundResponse{
			RefundID:    "rf_mock_" + req.OutRefundNo,
			OutRefundNo: req.OutRefundNo,
			Status:      RefundStatusProcessing,
		}, nil
	}

	body := map[string]interface{}{
		"sub_mchid":     req.SubMchID,
		"out_trade_no":  req.OutTradeNo,
		"out_refund_no": req.OutRefundNo,
		"reason":        req.Reason,
		"notify_url":    c.config.RefundNotifyURL,
		"amount": map[string]interface{}{
			"refund":   ToFen(req.Refund),
			"total":    ToFen(req.Total),
			"currency": "CNY",
		},
	}
	var resp RefundResponse
	if err := c.do(ctx, http.MethodPost, "/v3/refund/domestic/refunds", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// 交易状态
const (
	TradeStateSuccess = "SUCCESS"
	TradeStateNotPay  = "NOTPAY"
	TradeStateClosed  = "CLOSED"
)

// QueryResult 支付单查询结果
type QueryResult struct {
	TradeState    string `json:"trade_state"`
	TransactionID string `json:"transaction_id"`
}

// Paid 是否已支付
func (q *QueryResult) Paid() bool {
	return q.TradeState == TradeStateSuccess
}

// QueryPayment 按商户单号查询支付状态
func (c *Client) QueryPayment(ctx context.Context, outTradeNo string) (*QueryResult, error) {
	if c.config.Mock {
		c.mu.Lock()
		defer c.mu.Unlock()
		if txn, ok := c.mockPaid[outTradeNo]; ok {
			return &QueryResult{TradeState: TradeStateSuccess, TransactionID: txn}, nil
		}
		return &QueryResult{TradeState: TradeStateNotPay}, nil
	}

	var resp QueryResult
	path := fmt.Sprintf("/v3/pay/transactions/out-trade-no/%s?mchid=%s", outTradeNo, c.config.MchID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimulatePaid Mock 模式下将支付单标记为已支付
func (c *Client) SimulatePaid(outTradeNo, transactionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mockPaid[outTradeNo] = transactionID
}

// ToFen 元转分
func ToFen(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// do 发送带签名的 APIv3 请求
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := generateNonceStr()
	signature, err := c.sign(fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n", method, path, timestamp, nonce, payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf(
		`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",timestamp="%s",serial_no="%s",signature="%s"`,
		c.config.MchID, nonce, timestamp, c.config.SerialNo, signature,
	))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wechatpay request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("wechatpay %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// sign 使用商户私钥签名，Mock 模式返回固定值
func (c *Client) sign(message string) (string, error) {
	if c.privateKey == nil {
		return "mock_sign", nil
	}
	hashed := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return "", fmt.Errorf("sign error: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("invalid private key pem")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

func generateNonceStr() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
