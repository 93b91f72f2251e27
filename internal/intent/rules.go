package intent

import (
	"strings"
	"unicode/utf8"

	"chatpilot/internal/core"
)

// defaultRules returns the rule list in matching priority order. The order
// is load-bearing: small talk short-circuits before any domain keyword,
// pharmacy is tried before drug because "약국" contains "약", and the
// time rule applies its negative-context guard before accepting.
func defaultRules() []Rule {
	return []Rule{
		smallTalkRule(),
		weatherRule(),
		timeRule(),
		pharmacyRule(),
		hospitalRule(),
		cultureRule(),
		standingsRule(),
		scorersRule(),
		drugRule(),
		arxivRule(),
		pubmedRule(),
		webSearchRule(),
	}
}

var greetingWords = []string{
	"안녕", "하이", "ㅎㅇ", "헬로",
	"반가워", "반갑습니다", "고마워", "감사", "잘자", "굿모닝",
	"심심해", "사랑해", "ㅋㅋ", "ㅎㅎ", "ㅠㅠ", "ㅜㅜ",
}

// greetingTokens are ASCII greetings matched as whole tokens only, so that
// "hi" inside an English word never reads as small talk.
var greetingTokens = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
}

// smallTalkRule catches greetings, emotion, and very short non-question
// strings before any domain keyword gets a chance.
func smallTalkRule() Rule {
	return Rule{
		Name: "small_talk",
		Match: func(q Query) (core.Intent, bool) {
			conv := core.Intent{Action: core.ActionConversation, Params: core.Params{Query: q.Text}}
			for _, w := range greetingWords {
				if strings.Contains(q.Text, w) {
					return conv, true
				}
			}
			for _, tok := range q.Tokens {
				if greetingTokens[strings.Trim(tok, "!?.,~")] {
					return conv, true
				}
			}
			// Two characters or fewer without a question mark is noise,
			// not a lookup request.
			if utf8.RuneCountInString(q.Text) <= 2 && !strings.Contains(q.Text, "?") {
				return conv, true
			}
			return core.Intent{}, false
		},
	}
}

func weatherRule() Rule {
	return Rule{
		Name: "weather",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "날씨", "기온", "우산") {
				return core.Intent{}, false
			}
			action := core.ActionWeather
			days := 0
			switch {
			case containsAny(q.Text, "주간", "이번주", "일주일", "한주"):
				action = core.ActionWeeklyForecast
			case strings.Contains(q.Text, "모레"):
				action = core.ActionTomorrowWeather
				days = 2
			case strings.Contains(q.Text, "내일"):
				action = core.ActionTomorrowWeather
				days = 1
			}
			return core.Intent{
				Action: action,
				Params: core.Params{City: extractCity(q.Tokens), DaysAhead: days},
			}, true
		},
	}
}

// timeNegativeContexts are phrases in which "시간"/"몇시" does not mean a
// clock request. They are checked before accepting the classification.
var timeNegativeContexts = []string{
	"실시간", "시간이", "시간을", "시간에", "오랜 시간", "오랜시간",
	"시간 낭비", "시간낭비", "real-time", "realtime",
}

func timeRule() Rule {
	return Rule{
		Name: "time",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "몇시", "몇 시", "시간", "시각", "현재시간") {
				return core.Intent{}, false
			}
			for _, neg := range timeNegativeContexts {
				if strings.Contains(q.Text, neg) {
					return core.Intent{}, false
				}
			}
			return core.Intent{
				Action: core.ActionTime,
				Params: core.Params{City: extractCity(q.Tokens)},
			}, true
		},
	}
}

func pharmacyRule() Rule {
	return Rule{
		Name: "pharmacy",
		Match: func(q Query) (core.Intent, bool) {
			if !strings.Contains(q.Text, "약국") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionPharmacy,
				Params: core.Params{District: extractDistrict(q.Tokens)},
			}, true
		},
	}
}

func hospitalRule() Rule {
	return Rule{
		Name: "hospital",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "병원", "응급실") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionHospital,
				Params: core.Params{District: extractDistrict(q.Tokens)},
			}, true
		},
	}
}

func cultureRule() Rule {
	return Rule{
		Name: "culture_event",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "문화행사", "공연", "전시", "축제", "행사") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionCultureEvent,
				Params: core.Params{District: extractDistrict(q.Tokens), Page: extractPage(q.Text)},
			}, true
		},
	}
}

func standingsRule() Rule {
	return Rule{
		Name: "league_standings",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "리그순위", "리그 순위", "순위표", "standings") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionLeagueStandings,
				Params: core.Params{League: extractLeague(q.Text)},
			}, true
		},
	}
}

func scorersRule() Rule {
	return Rule{
		Name: "league_scorers",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "득점왕", "득점순위", "득점 순위", "scorers") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionLeagueScorers,
				Params: core.Params{League: extractLeague(q.Text)},
			}, true
		},
	}
}

func drugRule() Rule {
	return Rule{
		Name: "drug",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "약 ", "효능", "복용", "부작용", "의약품") && !strings.HasSuffix(q.Text, "약") {
				return core.Intent{}, false
			}
			name := extractDrugName(q.Tokens)
			if name == "" {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionDrug,
				Params: core.Params{Drug: name},
			}, true
		},
	}
}

func arxivRule() Rule {
	return Rule{
		Name: "arxiv_search",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "아카이브", "arxiv", "논문") {
				return core.Intent{}, false
			}
			// Medical paper requests belong to the PubMed rule.
			if containsAny(q.Text, "펍메드", "pubmed", "의학") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionArxivSearch,
				Params: core.Params{Query: extractSearchTerms(q.Tokens, "아카이브", "arxiv", "논문"), Page: extractPage(q.Text)},
			}, true
		},
	}
}

func pubmedRule() Rule {
	return Rule{
		Name: "pubmed_search",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "펍메드", "pubmed", "의학논문", "의학 논문") {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionPubmedSearch,
				Params: core.Params{Query: extractSearchTerms(q.Tokens, "펍메드", "pubmed", "의학논문", "의학", "논문"), Page: extractPage(q.Text)},
			}, true
		},
	}
}

func webSearchRule() Rule {
	return Rule{
		Name: "web_search",
		Match: func(q Query) (core.Intent, bool) {
			if !containsAny(q.Text, "검색", "찾아줘", "알아봐") {
				return core.Intent{}, false
			}
			terms := extractSearchTerms(q.Tokens, "검색", "찾아줘", "알아봐", "검색해줘", "검색해")
			if terms == "" {
				return core.Intent{}, false
			}
			return core.Intent{
				Action: core.ActionWebSearch,
				Params: core.Params{Query: terms, Page: extractPage(q.Text)},
			}, true
		},
	}
}
