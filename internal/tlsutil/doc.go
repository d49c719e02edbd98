// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 tlsutil 提供集中式 TLS 配置。

LLM 选场调用的 HTTP 客户端、Redis 连接与 API 服务器共用同一套加固
设置：TLS 1.2+，仅 AEAD 密码套件。ServerTLSConfig 在未配置证书时
返回 nil，调用方据此回退到明文 HTTP。
*/
package tlsutil
