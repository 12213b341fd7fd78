package history

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"assistant/internal/chat"
)

// Tokenizer token 计数器：优先 tiktoken，初始化失败时回退启发式估算
// Tokenizer counts tokens with tiktoken, falling back to a heuristic when the
// BPE tables are unavailable (offline environments).
type Tokenizer struct {
	encoder  *tiktoken.Tiktoken
	fallback bool
	mu       sync.RWMutex
}

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerOnce sync.Once
)

// DefaultTokenizer 返回进程级共享的 tokenizer 实例
// DefaultTokenizer returns the process-wide shared tokenizer.
func DefaultTokenizer() *Tokenizer {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer = NewTokenizer("cl100k_base")
	})
	return defaultTokenizer
}

// NewTokenizer creates a tokenizer for the given encoding name.
func NewTokenizer(encodingName string) *Tokenizer {
	t := &Tokenizer{}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// Count 计算消息列表的总 token 数（含每条消息约 4 token 的结构开销）
// Count returns the total token count for a message list, including the ~4
// tokens of per-message structural overhead of the chat format.
func (t *Tokenizer) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		total += 4
		total += t.CountText(msg.Role)
		total += t.CountText(msg.Content)
	}
	return total
}

// CountText counts tokens for a single string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// IsPrecise reports whether tiktoken counting is active.
func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

// heuristicTokenCount 启发式估算：英文约 4 字符/token
// heuristicTokenCount approximates ~4 chars per token for latin text.
func heuristicTokenCount(text string) int {
	n := len([]rune(strings.TrimSpace(text))) / 4
	if n < 1 {
		n = 1
	}
	return n
}
