// 版权所有 2024 frogteam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 providers 提供 OpenAI 兼容协议的公共类型与转换函数。

  - MapHTTPError / ReadErrorMessage：HTTP 错误到 llm.Error 的统一映射
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI / ToLLMChatResponse：
    llm 类型与线上格式之间的双向转换
  - BearerTokenHeaders / AzureKeyHeaders：OpenAI 与 Azure 的鉴权头
*/
package providers
