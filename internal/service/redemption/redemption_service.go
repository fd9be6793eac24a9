// Package redemption 提供积分兑换码签发与核销
package redemption

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/metrics"
	"github.com/dumeirei/storefront-settlement/internal/common/qrcode"
	"github.com/dumeirei/storefront-settlement/internal/common/tracing"
	"github.com/dumeirei/storefront-settlement/internal/common/utils"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
	"github.com/dumeirei/storefront-settlement/pkg/mqtt"
)

// CodeLength 兑换码位数
const CodeLength = 6

// DefaultMaxAttempts 兑换码冲突时的最大尝试次数
const DefaultMaxAttempts = 5

// errCollision 兑换码已被占用
var errCollision = stderrors.New("redemption code collision")

// CodeReserver 兑换码短期占位
type CodeReserver interface {
	Reserve(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// RedemptionService 积分兑换服务
type RedemptionService struct {
	db             *gorm.DB
	giftRepo       *repository.GiftRepository
	accountRepo    *repository.AccountRepository
	redemptionRepo *repository.RedemptionRepository
	reserver       CodeReserver
	qr             *qrcode.Generator
	publisher      mqtt.EventPublisher
	maxAttempts    int
	generate       func() string
}

// NewRedemptionService 创建积分兑换服务，reserver 为 nil 时仅依赖唯一索引
func NewRedemptionService(
	db *gorm.DB,
	giftRepo *repository.GiftRepository,
	accountRepo *repository.AccountRepository,
	redemptionRepo *repository.RedemptionRepository,
	reserver CodeReserver,
	publisher mqtt.EventPublisher,
) *RedemptionService {
	if publisher == nil {
		publisher = mqtt.NoopPublisher{}
	}
	return &RedemptionService{
		db:             db,
		giftRepo:       giftRepo,
		accountRepo:    accountRepo,
		redemptionRepo: redemptionRepo,
		reserver:       reserver,
		qr:             qrcode.NewGenerator(qrcode.WithSize(256)),
		publisher:      publisher,
		maxAttempts:    DefaultMaxAttempts,
		generate: func() string {
			return utils.GenerateRandomNumber(CodeLength)
		},
	}
}

// SetMaxAttempts 设置最大尝试次数
func (s *RedemptionService) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// RedeemResult 兑换结果
type RedeemResult struct {
	Record *models.RedemptionRecord `json:"record"`
	QRCode string                   `json:"qr_code"`
}

// checkRedeemable 校验礼品状态、库存与账户积分
func checkRedeemable(gift *models.Gift, account *models.Account) error {
	if gift.Status != models.StatusActive || gift.CostPoints <= 0 {
		return errors.ErrGiftUnavailable
	}
	if !gift.InStock() {
		return errors.ErrGiftSoldOut
	}
	if account.Points < gift.CostPoints {
		return errors.ErrPointsInsufficient.WithMessage(
			fmt.Sprintf("积分不足，需要%d积分，当前%d积分", gift.CostPoints, account.Points))
	}
	return nil
}

// RedeemGift 积分兑换礼品并签发 6 位兑换码
// 兑换码在所有账户间唯一，冲突时重新生成，多次冲突返回系统繁忙
func (s *RedemptionService) RedeemGift(ctx context.Context, accountID, giftID int64) (result *RedeemResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "redemption.RedeemGift",
		tracing.WithAccountID(accountID), tracing.WithGiftID(giftID))
	defer func() { tracing.End(span, err) }()

	gift, err := s.giftRepo.GetByID(ctx, giftID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrGiftNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrAccountNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if err := checkRedeemable(gift, account); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code := s.generate()
		record, err := s.tryIssue(ctx, accountID, giftID, code)
		if err == nil {
			metrics.GetMetrics().RecordRedemption("issued")
			s.publisher.Publish(ctx, mqtt.EventCodeRedeemed, map[string]interface{}{
				"gift_id":   record.GiftID,
				"gift_name": record.GiftName,
				"cost":      record.CostPoints,
			})
			logger.Info("积分兑换成功",
				logger.AccountID(accountID),
				logger.Int64("gift_id", giftID),
				logger.Int64("cost_points", record.CostPoints),
				logger.Int("attempt", attempt),
			)
			return &RedeemResult{Record: record, QRCode: s.qrDataURL(code)}, nil
		}
		if !stderrors.Is(err, errCollision) {
			return nil, err
		}
		metrics.GetMetrics().RecordRedemption("collision")
		logger.Debug("兑换码冲突，重新生成", logger.Int("attempt", attempt))
	}

	metrics.GetMetrics().RecordRedemption("exhausted")
	logger.Warn("兑换码多次冲突", logger.AccountID(accountID), logger.Int64("gift_id", giftID))
	return nil, errors.ErrSystemBusy
}

// tryIssue 用一个候选兑换码完成一次兑换，冲突时返回 errCollision
func (s *RedemptionService) tryIssue(ctx context.Context, accountID, giftID int64, code string) (*models.RedemptionRecord, error) {
	exists, err := s.redemptionRepo.CodeExists(ctx, code)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errCollision
	}

	if s.reserver != nil {
		ok, err := s.reserver.Reserve(ctx, code)
		switch {
		case err != nil:
			logger.Warn("兑换码占位失败，依赖唯一索引", logger.Err(err))
		case !ok:
			return nil, errCollision
		default:
			defer func() {
				if err := s.reserver.Release(context.WithoutCancel(ctx), code); err != nil {
					logger.Warn("释放兑换码占位失败", logger.Err(err))
				}
			}()
		}
	}

	record, err := s.issue(ctx, accountID, giftID, code)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errCollision
		}
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return record, nil
}

// issue 事务内扣积分、扣库存并写入兑换记录
func (s *RedemptionService) issue(ctx context.Context, accountID, giftID int64, code string) (*models.RedemptionRecord, error) {
	var record *models.RedemptionRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gift, err := s.giftRepo.GetForUpdate(ctx, tx, giftID)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrGiftNotFound
			}
			return err
		}
		account, err := s.accountRepo.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrAccountNotFound
			}
			return err
		}
		if err := checkRedeemable(gift, account); err != nil {
			return err
		}

		if err := s.accountRepo.DeductPoints(ctx, tx, account.ID, gift.CostPoints); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrPointsInsufficient
			}
			return err
		}
		if err := s.giftRepo.TakeOne(ctx, tx, gift); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrGiftSoldOut
			}
			return err
		}
		if err := s.accountRepo.CreatePointsLog(ctx, tx, &models.PointsLog{
			AccountID: account.ID,
			Type:      models.PointsLogRedeem,
			Points:    -gift.CostPoints,
			Balance:   account.Points - gift.CostPoints,
			RelatedNo: code,
		}); err != nil {
			return err
		}

		record = &models.RedemptionRecord{
			Code:       code,
			AccountID:  account.ID,
			GiftID:     gift.ID,
			GiftName:   gift.Name,
			CostPoints: gift.CostPoints,
		}
		return s.redemptionRepo.Create(ctx, tx, record)
	})
	return record, err
}

// qrDataURL 生成兑换码二维码，失败时返回空串
func (s *RedemptionService) qrDataURL(code string) string {
	url, err := s.qr.GenerateDataURL(code)
	if err != nil {
		logger.Warn("生成兑换码二维码失败", logger.Err(err))
		return ""
	}
	return url
}

// ListGifts 获取可兑换的礼品
func (s *RedemptionService) ListGifts(ctx context.Context) ([]*models.Gift, error) {
	list, err := s.giftRepo.ListActive(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}

// ListRedemptionCodes 获取账户未核销的兑换码
func (s *RedemptionService) ListRedemptionCodes(ctx context.Context, accountID int64) ([]*RedeemResult, error) {
	records, err := s.redemptionRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	list := make([]*RedeemResult, 0, len(records))
	for _, record := range records {
		list = append(list, &RedeemResult{Record: record, QRCode: s.qrDataURL(record.Code)})
	}
	return list, nil
}

// ConsumeRedemptionCode 商家核销兑换码，核销即删除
func (s *RedemptionService) ConsumeRedemptionCode(ctx context.Context, code string) (record *models.RedemptionRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "redemption.ConsumeRedemptionCode")
	defer func() { tracing.End(span, err) }()

	if !utils.IsDigits(code, CodeLength) {
		return nil, errors.ErrInvalidParams.WithMessage("兑换码必须为6位数字")
	}

	record, err = s.redemptionRepo.GetByCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrCodeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.redemptionRepo.Consume(ctx, tx, record.ID); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrCodeNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordRedemption("consumed")
	s.publisher.Publish(ctx, mqtt.EventCodeConsumed, map[string]interface{}{
		"gift_id":   record.GiftID,
		"gift_name": record.GiftName,
		"cost":      record.CostPoints,
	})
	logger.Info("兑换码已核销",
		logger.AccountID(record.AccountID),
		logger.Int64("gift_id", record.GiftID),
		logger.String("gift_name", record.GiftName),
	)
	return record, nil
}
