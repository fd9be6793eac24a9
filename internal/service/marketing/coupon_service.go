// Package marketing 提供优惠券领取服务
package marketing

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
)

// CouponService 优惠券服务
type CouponService struct {
	db          *gorm.DB
	couponRepo  *repository.CouponRepository
	accountRepo *repository.AccountRepository
}

// NewCouponService 创建优惠券服务
func NewCouponService(db *gorm.DB, couponRepo *repository.CouponRepository, accountRepo *repository.AccountRepository) *CouponService {
	return &CouponService{
		db:          db,
		couponRepo:  couponRepo,
		accountRepo: accountRepo,
	}
}

// CouponItem 可领取优惠券项
type CouponItem struct {
	*models.CouponTemplate
	Remaining int64 `json:"remaining"`
}

// ListClaimable 获取可领取的优惠券模板
func (s *CouponService) ListClaimable(ctx context.Context) ([]*CouponItem, error) {
	templates, err := s.couponRepo.ListClaimable(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	list := make([]*CouponItem, 0, len(templates))
	for _, t := range templates {
		list = append(list, &CouponItem{CouponTemplate: t, Remaining: t.Remaining()})
	}
	return list, nil
}

// ListAccountCoupons 获取账户未使用的优惠券
func (s *CouponService) ListAccountCoupons(ctx context.Context, accountID int64) ([]*models.AccountCoupon, error) {
	list, err := s.couponRepo.ListUnused(ctx, accountID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}

// ClaimCoupon 领取优惠券，每个账户每个模板限领一张
// 配额通过条件更新扣减，并发领取不会超发
func (s *CouponService) ClaimCoupon(ctx context.Context, accountID, templateID int64) (*models.AccountCoupon, error) {
	var coupon *models.AccountCoupon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.GetForUpdate(ctx, tx, accountID); err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrAccountNotFound
			}
			return err
		}

		template, err := s.couponRepo.GetTemplateForUpdate(ctx, tx, templateID)
		if err != nil {
			if repository.IsNotFound(err) {
				return errors.ErrCouponNotFound
			}
			return err
		}
		if template.Status != models.StatusActive || !template.Claimable {
			return errors.ErrCouponUnavailable
		}

		held, err := s.couponRepo.CountByTemplate(ctx, tx, accountID, templateID)
		if err != nil {
			return err
		}
		if held > 0 {
			return errors.ErrCouponClaimed
		}

		if err := s.couponRepo.IncrementClaimed(ctx, tx, templateID, 1); err != nil {
			if stderrors.Is(err, repository.ErrNoRowsAffected) {
				return errors.ErrCouponOutOfStock
			}
			return err
		}

		coupon = &models.AccountCoupon{
			AccountID:  accountID,
			TemplateID: template.ID,
			Title:      template.Title,
			MinSpend:   template.MinSpend,
			Discount:   template.Discount,
			Source:     models.CouponSourceClaim,
			Status:     models.CouponStatusUnused,
		}
		return s.couponRepo.CreateCoupons(ctx, tx, []*models.AccountCoupon{coupon})
	})
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("领取优惠券",
		logger.AccountID(accountID),
		logger.Int64("template_id", templateID),
		logger.Int64("coupon_id", coupon.ID),
	)
	return coupon, nil
}
