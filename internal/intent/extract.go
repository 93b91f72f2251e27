package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// entityStoplist are time words, quantifiers, and command particles that
// must never be captured as the entity itself (a city, drug, or search
// term), even when they survive keyword stripping.
var entityStoplist = map[string]bool{
	"오늘": true, "내일": true, "모레": true, "지금": true, "현재": true,
	"주간": true, "이번주": true, "일주일": true, "한주": true,
	"날씨": true, "기온": true, "우산": true,
	"시간": true, "몇시": true, "몇시야": true, "시각": true,
	"좀": true, "제발": true, "빨리": true, "많이": true, "조금": true,
	"알려줘": true, "알려줘요": true, "알려주세요": true, "어때": true,
	"어때?": true, "어떄": true, "궁금해": true, "궁금": true,
	"정보": true, "추천": true, "뭐야": true, "뭐지": true,
}

// extractCity returns the first token that is not a stopword. Empty when
// every token is stopped; adapters apply their own default city.
func extractCity(tokens []string) string {
	for _, tok := range tokens {
		if !entityStoplist[tok] {
			return tok
		}
	}
	return ""
}

// extractDistrict returns the first token that looks like a Seoul district
// or neighborhood name (…구 / …동). Empty means city-wide.
func extractDistrict(tokens []string) string {
	for _, tok := range tokens {
		if entityStoplist[tok] {
			continue
		}
		if strings.HasSuffix(tok, "구") || strings.HasSuffix(tok, "동") {
			return tok
		}
	}
	return ""
}

// leagueAliases maps keyword fragments to the normalized league code used
// throughout the gateway. Checked in declaration order.
var leagueAliases = []struct {
	fragment string
	code     string
}{
	{"챔피언스", "ucl"},
	{"챔스", "ucl"},
	{"ucl", "ucl"},
	{"프리미어", "epl"},
	{"epl", "epl"},
	{"라리가", "laliga"},
	{"laliga", "laliga"},
	{"분데스", "bundesliga"},
	{"세리에", "seriea"},
	{"리그앙", "ligue1"},
	{"리그1", "ligue1"},
}

// extractLeague maps text to a normalized league code, defaulting to epl
// when no league is named.
func extractLeague(text string) string {
	for _, alias := range leagueAliases {
		if strings.Contains(text, alias.fragment) {
			return alias.code
		}
	}
	return "epl"
}

var pagePattern = regexp.MustCompile(`(\d+)\s*(?:페이지|페이지째|page)`)

// extractPage parses an explicit page request ("2페이지"). Defaults to 1.
func extractPage(text string) int {
	m := pagePattern.FindStringSubmatch(text)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// drugKeywordSuffixes are trailing domain words stripped from a candidate
// drug token ("타이레놀약" → "타이레놀").
var drugKeywords = map[string]bool{
	"약": true, "효능": true, "부작용": true, "복용": true, "복용법": true,
	"의약품": true, "성분": true,
}

// extractDrugName finds the drug entity among the tokens: the first token
// that is neither a domain keyword nor a stopword.
func extractDrugName(tokens []string) string {
	for _, tok := range tokens {
		if entityStoplist[tok] || drugKeywords[tok] {
			continue
		}
		return tok
	}
	return ""
}

// extractSearchTerms joins the tokens that remain after removing the rule's
// own trigger keywords and stopwords. The result preserves token order.
func extractSearchTerms(tokens []string, triggers ...string) string {
	triggerSet := make(map[string]bool, len(triggers))
	for _, tr := range triggers {
		triggerSet[tr] = true
	}

	var terms []string
	for _, tok := range tokens {
		if entityStoplist[tok] || triggerSet[tok] {
			continue
		}
		skip := false
		for _, tr := range triggers {
			if strings.Contains(tok, tr) {
				skip = true
				break
			}
		}
		if !skip {
			terms = append(terms, tok)
		}
	}
	return strings.Join(terms, " ")
}
