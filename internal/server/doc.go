// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 SceneFlow 的 HTTP 服务器生命周期。

Manager 持有一组具名服务器（API 与独立的 metrics 端口），Run
先绑定全部监听地址，再用 errgroup 并发服务；任一服务器失败或
ctx 取消时，在 ShutdownTimeout 内优雅关闭全部服务器。信号处理
交给调用方通过 signal.NotifyContext 完成。
*/
package server
