// Package factory 根据成员配置创建 LLM Provider：
// OpenAI、Azure OpenAI 部署与任意 OpenAI 兼容网关共用同一 HTTP 协议实现。
package factory
