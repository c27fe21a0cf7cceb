package scorer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Membership is the authorship of a scored message. Role-based rules
// only apply to GuildMember; webhook and system authors carry no roles
// and must not be penalized for it.
type Membership interface {
	membership()
}

type GuildMember struct {
	RoleIDs []string
}

func (GuildMember) membership() {}

// ProxyAuthor covers webhook and application authors with no guild
// member record behind them.
type ProxyAuthor struct{}

func (ProxyAuthor) membership() {}

type Input struct {
	DisplayName   string
	Content       string
	HasAvatar     bool
	Author        Membership
	CatcherRoleID string
}

type keywordRule struct {
	pattern *regexp.Regexp
	weight  int
}

var keywordRules = []keywordRule{
	{regexp.MustCompile(`\bWALL?LET\b`), 50},
	{regexp.MustCompile(`\b\d+\s*SOL\b`), 50},
	{regexp.MustCompile(`\bDEAD\s+TOKENS?\b`), 50},
	{regexp.MustCompile(`\bPAY\s+HIM\b`), 50},
	{regexp.MustCompile(`\bPLENTY\s+TRANSACTIONS?\b`), 40},
	{regexp.MustCompile(`\bEMPTY\s+WALLET\b`), 40},
	{regexp.MustCompile(`\bBUY\b.*\bWALLET\b`), 40},
	{regexp.MustCompile(`\bDM\s+ME\b`), 30},
	{regexp.MustCompile(`\bCRYPTO\b`), 20},
}

var suspiciousNamePattern = regexp.MustCompile(`[a-z]+\.[a-z]+\d{2,4}_\d{4,}`)

const currencySymbols = "£€¥₿$₹₽"

const hoistCharacters = "!=#@._-~"

// Score sums every matching rule's weight and returns the matched
// reasons. Rules are independent; order only affects reason ordering.
func Score(in Input) (int, []string) {
	score := 0
	var reasons []string

	add := func(weight int, reason string) {
		score += weight
		reasons = append(reasons, reason)
	}

	name := in.DisplayName
	if strings.ContainsAny(name, currencySymbols) {
		add(20, "Currency symbols in username")
	}
	if name != "" && strings.ContainsRune(hoistCharacters, rune(name[0])) {
		add(20, "Hoisting character in username")
	}
	if suspiciousNamePattern.MatchString(strings.ToLower(name)) {
		add(15, "Suspicious username pattern")
	}

	if ratio := capsRatio(in.Content); len([]rune(in.Content)) > 20 && ratio > 0.7 {
		add(30, fmt.Sprintf("Caps spam (%d%%)", int(ratio*100)))
	}

	upper := strings.ToUpper(in.Content)
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(upper) {
			add(rule.weight, "Keyword: "+rule.pattern.String())
		}
	}

	if member, ok := in.Author.(GuildMember); ok {
		switch {
		case in.CatcherRoleID != "" && len(member.RoleIDs) == 1 && member.RoleIDs[0] == in.CatcherRoleID:
			add(30, "Only has CATCHER role")
		case len(member.RoleIDs) == 0:
			add(20, "No roles (only @everyone)")
		}
	}

	if !in.HasAvatar {
		add(15, "No profile picture")
	}

	return score, reasons
}

func capsRatio(content string) float64 {
	total := 0
	upper := 0
	for _, r := range content {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}
