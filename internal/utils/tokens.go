package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strconv"
)

const (
	OTPLength = 6
	otpMin    = 100000
)

var (
	otpSpan  = big.NewInt(900000) // 100000..999999
	otpRegex = regexp.MustCompile(`^\d{6}$`)
)

// GenerateOTP возвращает равномерно распределённый 6-значный код без ведущих нулей.
func GenerateOTP() string {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		// crypto/rand падает только при сломанном источнике энтропии ОС
		panic("otp: read random: " + err.Error())
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10)
}

func IsOTPCode(code string) bool {
	return otpRegex.MatchString(code)
}
