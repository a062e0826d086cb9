// Package tokenizer 提供基于 tiktoken 的 Token 估算，用于队列作业的准入计量。
// 编码器初始化失败时回退到固定估算值。
package tokenizer
