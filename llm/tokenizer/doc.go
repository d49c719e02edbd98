// Package tokenizer 提供 Token 计数，用于选场提示词的预算裁剪。
// tiktoken 精确计数不可用时（例如无法获取编码数据）回退到 CJK 感知的估算器。
package tokenizer
