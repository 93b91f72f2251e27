package dispatch

import (
	"strings"

	"chatpilot/internal/core"
)

// conversationReply answers small talk and unclassified input. Replies are
// canned: this service routes data questions, it does not generate
// language. The recent history only decides whether to re-greet.
func conversationReply(query string, history []core.HistoryEntry) core.Response {
	text := strings.ToLower(strings.TrimSpace(query))

	switch {
	case containsAny(text, "고마워", "감사"):
		return core.TextResponse("천만에요! 또 궁금한 게 있으면 말씀해 주세요.")
	case containsAny(text, "안녕", "하이", "반가워") || isAsciiGreeting(text):
		if greetedRecently(history) {
			return core.TextResponse("무엇을 도와드릴까요? 날씨, 약 정보, 축구 순위, 논문 검색 같은 걸 물어보실 수 있어요.")
		}
		return core.TextResponse("안녕하세요! 무엇을 도와드릴까요?")
	case containsAny(text, "뭐 할 수 있", "뭘 할 수 있", "도움말", "help"):
		return core.TextResponse("날씨·주간 예보, 의약품 정보, 축구 리그 순위와 득점 순위, arXiv/PubMed 논문 검색, 웹 검색, 서울 문화 행사와 약국·병원 안내를 도와드려요.")
	default:
		return core.TextResponse("잘 이해하지 못했어요. 날씨, 약 정보, 축구 순위, 논문 검색처럼 구체적으로 물어봐 주시겠어요?")
	}
}

func greetedRecently(history []core.HistoryEntry) bool {
	for _, entry := range history {
		if entry.Role == "assistant" && strings.Contains(entry.Content, "안녕하세요") {
			return true
		}
	}
	return false
}

var asciiGreetings = map[string]bool{"hi": true, "hello": true, "hey": true, "yo": true}

func isAsciiGreeting(text string) bool {
	for _, tok := range strings.Fields(text) {
		if asciiGreetings[strings.Trim(tok, "!?.,~")] {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
