// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 config 提供 SceneFlow 的配置加载。

加载顺序为默认值、YAML 文件、SCENEFLOW_ 前缀的环境变量，
后者覆盖前者。Validate 一次报告全部配置问题。

FileWatcher 以轮询方式监听场景编写文件，防抖后回调，
服务据此重新导入场景目录。
*/
package config
