package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
)

const (
	serialDigits = 6
	// 单次分配时逐个探测空闲序号的上限
	serialScanLimit = 100
)

var serialSuffixRe = regexp.MustCompile(`-(\d+)$`)

// ShiftSerialCode 班次类型对应的两位序号代码
func ShiftSerialCode(shiftCode string) string {
	switch shiftCode {
	case entity.ShiftLongDay:
		return "CB"
	case entity.ShiftRotating:
		return "DB"
	default:
		return "XX"
	}
}

// SerialPrefix 期数数字 + 班次代码 + "-"，如 phase_1/long_day_shift -> "1CB-"
func SerialPrefix(phaseCode, shiftCode string) string {
	return strings.TrimPrefix(phaseCode, "phase_") + ShiftSerialCode(shiftCode) + "-"
}

// ParseSerialSuffix 取序号末尾 "-" 之后的数字
func ParseSerialSuffix(serial string) (int, bool) {
	m := serialSuffixRe.FindStringSubmatch(serial)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatSerial 前缀 + 六位补零数字
func FormatSerial(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, serialDigits, n)
}

// SerialAllocator 按期数+班次前缀分配下一个序号。
// 读取最大值与插入之间存在竞争窗口，插入失败由调用方重试
type SerialAllocator struct {
	repo *repository.ShiftRecordRepository
}

func NewSerialAllocator(repo *repository.ShiftRecordRepository) *SerialAllocator {
	return &SerialAllocator{repo: repo}
}

// Next 分配下一个未被占用的序号
func (a *SerialAllocator) Next(ctx context.Context, phaseCode, shiftCode string) (string, error) {
	prefix := SerialPrefix(phaseCode, shiftCode)

	latest, err := a.repo.LatestSerial(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("查询最大序号失败: %w", err)
	}

	next := 1
	if n, ok := ParseSerialSuffix(latest); ok {
		next = n + 1
	}

	for i := 0; i < serialScanLimit; i++ {
		serial := FormatSerial(prefix, next)
		exists, err := a.repo.SerialExists(ctx, serial)
		if err != nil {
			return "", fmt.Errorf("检查序号失败: %w", err)
		}
		if !exists {
			return serial, nil
		}
		next++
	}
	return "", newError(ErrSerialExhausted, "序号分配失败: 前缀 %s 连续 %d 个序号均已占用", prefix, serialScanLimit)
}
