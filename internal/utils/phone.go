package utils

import (
	"regexp"
	"strings"
)

// 10-значный абонентский номер, начинается с 6–9
var mobileRegex = regexp.MustCompile(`^[6-9]\d{9}$`)

func NormalizeMobile(mobile string) string {
	return strings.TrimSpace(mobile)
}

func IsValidMobile(mobile string) bool {
	return mobileRegex.MatchString(mobile)
}

// MaskMobile оставляет последние 4 цифры, для логов.
func MaskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return mobile
	}
	return strings.Repeat("*", len(mobile)-4) + mobile[len(mobile)-4:]
}
