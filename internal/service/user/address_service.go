package user

import (
	"context"
	"fmt"

	"github.com/dumeirei/storefront-settlement/internal/common/errors"
	"github.com/dumeirei/storefront-settlement/internal/models"
	"github.com/dumeirei/storefront-settlement/internal/repository"
)

// AddressService 地址服务
type AddressService struct {
	addressRepo *repository.AddressRepository
}

// NewAddressService 创建地址服务
func NewAddressService(addressRepo *repository.AddressRepository) *AddressService {
	return &AddressService{addressRepo: addressRepo}
}

// MaxAddressCount 每个账户最大地址数量
const MaxAddressCount = 20

// CreateAddressRequest 创建地址请求
type CreateAddressRequest struct {
	Receiver string `json:"receiver" binding:"required,max=50"`
	Phone    string `json:"phone" binding:"required,max=20"`
	Detail   string `json:"detail" binding:"required,max=255"`
}

// Create 创建地址
func (s *AddressService) Create(ctx context.Context, accountID int64, req *CreateAddressRequest) (*models.Address, error) {
	count, err := s.addressRepo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if count >= MaxAddressCount {
		return nil, errors.ErrInvalidParams.WithMessage(fmt.Sprintf("地址数量已达上限（%d个）", MaxAddressCount))
	}

	address := &models.Address{
		AccountID: accountID,
		Receiver:  req.Receiver,
		Phone:     req.Phone,
		Detail:    req.Detail,
	}
	if err := s.addressRepo.Create(ctx, address); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return address, nil
}

// List 获取账户地址列表
func (s *AddressService) List(ctx context.Context, accountID int64) ([]*models.Address, error) {
	list, err := s.addressRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}
