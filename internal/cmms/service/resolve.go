package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
)

// ErrUnresolvedCode 文本与默认值都无法确定代码
var ErrUnresolvedCode = errors.New("code could not be resolved")

var explicitPhaseRe = regexp.MustCompile(`^phase_\w+$`)

// ResolvePhaseCode 从表格中的期数文本推断期数代码。
// 显式代码原样使用，含"一"/"1"为一期，含"二"/"2"为二期；
// 文本为空时使用 fallback，文本无法识别时报错
func ResolvePhaseCode(text, fallback string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return orFallback(fallback)
	}
	switch {
	case explicitPhaseRe.MatchString(text):
		return text, nil
	case strings.Contains(text, "一") || strings.Contains(text, "1"):
		return entity.PhaseOneCode, nil
	case strings.Contains(text, "二") || strings.Contains(text, "2"):
		return entity.PhaseTwoCode, nil
	}
	return "", ErrUnresolvedCode
}

// ResolveShiftCode 从表格中的班次文本推断班次类型代码。
// "长白班"/"白班" 为长白班，"倒班" 为倒班，标准代码原样使用；
// 文本为空时使用 fallback，文本无法识别时报错
func ResolveShiftCode(text, fallback string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return orFallback(fallback)
	}
	switch {
	case text == entity.ShiftLongDay || text == entity.ShiftRotating:
		return text, nil
	case strings.Contains(text, "长白班") || strings.Contains(text, "白班"):
		return entity.ShiftLongDay, nil
	case strings.Contains(text, "倒班"):
		return entity.ShiftRotating, nil
	}
	return "", ErrUnresolvedCode
}

func orFallback(fallback string) (string, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return "", ErrUnresolvedCode
	}
	return fallback, nil
}

// changeReasonCodes 中文标签反查变更原因代码
var changeReasonCodes = func() map[string]string {
	m := make(map[string]string, len(entity.ChangeReasonLabels))
	for code, label := range entity.ChangeReasonLabels {
		m[label] = code
	}
	return m
}()

// ResolveChangeReason 中文标签转为代码，其他值原样保留
func ResolveChangeReason(text string) string {
	text = strings.TrimSpace(text)
	if code, ok := changeReasonCodes[text]; ok {
		return code
	}
	return text
}
