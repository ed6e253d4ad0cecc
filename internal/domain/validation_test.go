package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLocalPart(t *testing.T) {
	t.Run("合法前缀通过校验", func(t *testing.T) {
		for _, v := range []string{"abc", "user123", "a.b-c_d", "x1y2z3"} {
			assert.NoError(t, ValidateLocalPart(v), v)
		}
	})

	t.Run("过短或过长的前缀被拒绝", func(t *testing.T) {
		assert.Equal(t, ErrInvalidLocalPart, ValidateLocalPart("ab"))

		long := make([]byte, MaxLocalPartLength+1)
		for i := range long {
			long[i] = 'a'
		}
		assert.Equal(t, ErrLocalPartTooLong, ValidateLocalPart(string(long)))
	})

	t.Run("非法字符与连续特殊字符被拒绝", func(t *testing.T) {
		for _, v := range []string{"-abc", "abc-", "a..b", "a--b", "a__b", "中文前缀", "a b c"} {
			assert.Error(t, ValidateLocalPart(v), v)
		}
	})
}

func TestValidateDomain(t *testing.T) {
	t.Run("合法域名通过校验", func(t *testing.T) {
		for _, v := range []string{"mail.tm", "temp.example.com", "a1-b2.io"} {
			assert.NoError(t, ValidateDomain(v), v)
		}
	})

	t.Run("非法域名被拒绝", func(t *testing.T) {
		for _, v := range []string{"", "-bad.com", "no..dots", "bad_domain.com"} {
			assert.Error(t, ValidateDomain(v), v)
		}
	})
}
