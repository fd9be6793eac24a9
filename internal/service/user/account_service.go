// Package user 提供账户与地址服务
package user

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/storefront-settlement/internal/common/database"
	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/common/logger"
	"github.com/dumeirei/storefront-settlement/internal/common/utils"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
)

// AccountService 账户服务
type AccountService struct {
	accountRepo *repository.AccountRepository
	couponRepo  *repository.CouponRepository
}

// NewAccountService 创建账户服务
func NewAccountService(accountRepo *repository.AccountRepository, couponRepo *repository.CouponRepository) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		couponRepo:  couponRepo,
	}
}

// Profile 账户概览
type Profile struct {
	ID            int64           `json:"id"`
	Nickname      string          `json:"nickname"`
	Phone         *string         `json:"phone,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	Points        int64           `json:"points"`
	MemberLevel   int             `json:"member_level"`
	TotalRecharge decimal.Decimal `json:"total_recharge"`
	CouponCount   int             `json:"coupon_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GetOrCreate 按 openid 获取账户，首次登录时创建
func (s *AccountService) GetOrCreate(ctx context.Context, openID, nickname string) (*models.Account, error) {
	if openID == "" {
		return nil, errors.ErrInvalidParams.WithMessage("openid不能为空")
	}

	account, err := s.accountRepo.GetByOpenID(ctx, openID)
	if err == nil {
		return account, nil
	}
	if !repository.IsNotFound(err) {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	account = &models.Account{
		OpenID:   openID,
		Nickname: nickname,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		// 并发首次登录，另一请求已创建
		if database.IsUniqueViolation(err) {
			existing, getErr := s.accountRepo.GetByOpenID(ctx, openID)
			if getErr != nil {
				return nil, errors.ErrDatabaseError.WithError(getErr)
			}
			return existing, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("创建账户", logger.AccountID(account.ID))
	return account, nil
}

// GetProfile 获取账户概览
func (s *AccountService) GetProfile(ctx context.Context, accountID int64) (*Profile, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrAccountNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	coupons, err := s.couponRepo.ListUnused(ctx, accountID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return &Profile{
		ID:            account.ID,
		Nickname:      account.Nickname,
		Phone:         account.Phone,
		Balance:       account.Balance,
		Points:        account.Points,
		MemberLevel:   account.MemberLevel,
		TotalRecharge: account.TotalRecharge,
		CouponCount:   len(coupons),
		CreatedAt:     account.CreatedAt,
	}, nil
}

// WalletTransactionList 余额流水分页结果
type WalletTransactionList struct {
	List  []*models.WalletTransaction `json:"list"`
	Total int64                       `json:"total"`
}

// ListWalletTransactions 分页获取余额流水
func (s *AccountService) ListWalletTransactions(ctx context.Context, accountID int64, p *utils.Pagination) (*WalletTransactionList, error) {
	p.Normalize()
	list, total, err := s.accountRepo.ListWalletTransactions(ctx, accountID, p.GetOffset(), p.GetLimit())
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return &WalletTransactionList{List: list, Total: total}, nil
}

// ListPointsLogs 获取积分流水
func (s *AccountService) ListPointsLogs(ctx context.Context, accountID int64) ([]*models.PointsLog, error) {
	list, err := s.accountRepo.ListPointsLogs(ctx, accountID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}
