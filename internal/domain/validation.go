package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 地址校验相关的错误定义
var (
	ErrInvalidLocalPart = errors.New("invalid local part format")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrInvalidDomain    = errors.New("invalid domain format")
)

// RFC 5322 长度限制
const (
	MaxLocalPartLength = 64
	MaxDomainLength    = 253
)

var (
	// 本地部分：字母数字开头结尾，中间允许 . _ -
	localPartRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*[a-z0-9]$|^[a-z0-9]$`)

	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?(\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?)*$`)
)

// ValidateLocalPart 校验用户自定义的邮箱前缀。
//
// 提供方对非法前缀会直接返回 422，这里提前拦截，
// 避免浪费一次创建请求。
func ValidateLocalPart(localPart string) error {
	localPart = strings.ToLower(localPart)
	if len(localPart) < 3 {
		return ErrInvalidLocalPart
	}
	if len(localPart) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}
	// 不允许连续的特殊字符
	if strings.Contains(localPart, "..") || strings.Contains(localPart, "--") ||
		strings.Contains(localPart, "__") {
		return ErrInvalidLocalPart
	}
	return nil
}

// ValidateDomain 校验提供方返回的域名格式。
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	for _, label := range strings.Split(domain, ".") {
		if len(label) > 63 {
			return ErrInvalidDomain
		}
	}
	return nil
}
