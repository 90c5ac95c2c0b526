package template

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"gitee.com/flycash/notification-governance/internal/errs"
)

const DefaultMaxPayloadLength = 4000

var DefaultLanguages = []string{"en", "zh"}

type PolicyConfig struct {
	Languages        []string
	MaxPayloadLength int
	AllowedHosts     []string
}

type denyRule struct {
	name    string
	pattern *regexp.Regexp
	// check 二次确认，减少误报
	check func(match string) bool
}

var (
	// 协议名不区分大小写
	urlPattern     = regexp.MustCompile(`(?i)https?://[^\s<>"'\x60]+`)
	cardCandidates = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

	denyRules = []denyRule{
		{name: "card_number", pattern: cardCandidates, check: luhnValid},
		{name: "api_key", pattern: regexp.MustCompile(`\b(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{16,}\b`)},
		{name: "api_key", pattern: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
		{name: "api_key", pattern: regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]\s*\S{8,}`)},
		{name: "iban", pattern: regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){3,7}(?: ?[A-Z0-9]{1,3})?\b`)},
		{name: "bank_account", pattern: regexp.MustCompile(`(?i)\b(?:account|acct|routing|swift)\s*(?:number|no\.?|#|code)\s*[:=]?\s*[A-Z0-9]{6,}`)},
		{name: "bearer_token", pattern: regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{16,}=*`)},
		{name: "jwt", pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`)},
		{name: "private_key", pattern: regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`)},
	}
)

// Policy 外发内容策略
type Policy struct {
	languages    []string
	maxLength    int
	allowedHosts map[string]struct{}
}

func NewPolicy(cfg PolicyConfig) *Policy {
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages
	}
	if cfg.MaxPayloadLength <= 0 {
		cfg.MaxPayloadLength = DefaultMaxPayloadLength
	}
	hosts := make(map[string]struct{}, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		hosts[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Policy{
		languages:    slices.Clone(cfg.Languages),
		maxLength:    cfg.MaxPayloadLength,
		allowedHosts: hosts,
	}
}

// Validate 依次检查语言、长度、敏感信息与链接
func (p *Policy) Validate(language, payload string, allowedPatterns []string) error {
	if !slices.Contains(p.languages, language) {
		return fmt.Errorf("%w: %q", errs.ErrUnsupportedLanguage, language)
	}
	if n := utf8.RuneCountInString(payload); n > p.maxLength {
		return fmt.Errorf("%w: length=%d max=%d", errs.ErrPayloadTooLong, n, p.maxLength)
	}
	for _, rule := range denyRules {
		for _, m := range rule.pattern.FindAllString(payload, -1) {
			if rule.check == nil || rule.check(m) {
				// 不回显命中的内容
				return fmt.Errorf("%w: rule=%s", errs.ErrForbiddenContent, rule.name)
			}
		}
	}
	for _, raw := range urlPattern.FindAllString(payload, -1) {
		if err := p.checkLink(raw, allowedPatterns); err != nil {
			return err
		}
	}
	return nil
}

func (p *Policy) checkLink(raw string, allowedPatterns []string) error {
	raw = strings.TrimRight(raw, ".,;:!?)]}")
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: 无法解析的链接", errs.ErrDisallowedLink)
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := p.allowedHosts[host]; !ok {
		return fmt.Errorf("%w: host=%s", errs.ErrDisallowedLink, host)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	for _, pattern := range allowedPatterns {
		if MatchPathPattern(pattern, path) {
			return nil
		}
	}
	return fmt.Errorf("%w: host=%s path=%s", errs.ErrDisallowedLink, host, path)
}

// MatchPathPattern 精确匹配，或者在 * 之前做前缀匹配
func MatchPathPattern(pattern, path string) bool {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return strings.HasPrefix(path, pattern[:i])
	}
	return pattern == path
}

func luhnValid(s string) bool {
	sum, n := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n >= 13 && n <= 19 && sum%10 == 0
}
