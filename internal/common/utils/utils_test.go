// Package utils 工具函数单元测试
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNo(t *testing.T) {
	no := GenerateOrderNo("OD")

	assert.True(t, strings.HasPrefix(no, "OD"))
	// 前缀 2 位 + 时间戳 14 位 + 随机数 6 位
	assert.Len(t, no, 22)
	assert.NotEqual(t, no, GenerateOrderNo("OD"))
}

func TestGenerateRandomNumber(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := GenerateRandomNumber(6)
		assert.True(t, IsDigits(code, 6), code)
	}
}

func TestIsDigits(t *testing.T) {
	tests := []struct {
		in     string
		length int
		want   bool
	}{
		{"012345", 6, true},
		{"12345", 6, false},
		{"12a456", 6, false},
		{"", 0, true},
		{"1234567", 6, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDigits(tt.in, tt.length), tt.in)
	}
}

func TestPagination(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 500}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)

	p = Pagination{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.GetOffset())
	assert.Equal(t, 20, p.GetLimit())
}

func TestPointerHelpers(t *testing.T) {
	assert.Equal(t, "x", SafeString(StringPtr("x")))
	assert.Equal(t, "", SafeString(nil))
	assert.Equal(t, int64(9), *Int64Ptr(9))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "138****8000", MaskPhone("13800138000"))
	assert.Equal(t, "12345", MaskPhone("12345"))
}
