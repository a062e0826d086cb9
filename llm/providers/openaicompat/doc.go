// Package openaicompat implements llm.Provider over the OpenAI Chat
// Completions wire format. The factory in llm/factory configures it for
// OpenAI, Azure OpenAI deployments and custom gateways.
package openaicompat
