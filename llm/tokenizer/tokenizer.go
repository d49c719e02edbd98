package tokenizer

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Tokenizer 统一的 Token 计数接口
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数
	CountTokens(text string) (int, error)

	// Name 返回分词器名称
	Name() string
}

// MessageOverhead 每条聊天消息的固定开销（角色标记与分隔符）
const MessageOverhead = 4

// ForModel 返回模型对应的分词器：优先 tiktoken，失败后永久回退到估算器。
func ForModel(model string, logger *zap.Logger) Tokenizer {
	return NewFallback(NewTiktokenTokenizer(model), NewEstimatorTokenizer(), logger)
}

// Fallback 在主分词器首次失败后切换到备用分词器
type Fallback struct {
	primary   Tokenizer
	secondary Tokenizer
	degraded  atomic.Bool
	logger    *zap.Logger
}

// NewFallback 创建回退分词器
func NewFallback(primary, secondary Tokenizer, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With(zap.String("component", "tokenizer")),
	}
}

func (f *Fallback) CountTokens(text string) (int, error) {
	if !f.degraded.Load() {
		n, err := f.primary.CountTokens(text)
		if err == nil {
			return n, nil
		}
		if f.degraded.CompareAndSwap(false, true) {
			f.logger.Warn("tokenizer unavailable, falling back to estimate",
				zap.String("tokenizer", f.primary.Name()),
				zap.Error(err))
		}
	}
	return f.secondary.CountTokens(text)
}

func (f *Fallback) Name() string {
	if f.degraded.Load() {
		return f.secondary.Name()
	}
	return f.primary.Name()
}
