package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOTP_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := GenerateOTP()
		require.Len(t, code, OTPLength)
		require.True(t, IsOTPCode(code), code)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestIsOTPCode(t *testing.T) {
	require.True(t, IsOTPCode("123456"))
	require.True(t, IsOTPCode("000000"))
	require.False(t, IsOTPCode("12345"))
	require.False(t, IsOTPCode("1234567"))
	require.False(t, IsOTPCode("12a456"))
	require.False(t, IsOTPCode(""))
}
