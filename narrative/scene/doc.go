// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 scene 提供场景模型、场景目录（Catalog）与候选筛选管线。

# 概述

场景是离线编写的微型事件：带有角色槽位、有序的介入序列以及完成后的后果
（张力种子、关系变化、临时效果）。场景文件使用 YAML 编写，在加载时一次性
编译为带类型的结构并完成结构校验，运行时不再解析松散字段。

# 核心类型

  - Scene / Role / Intervention：场景、带显式标签的角色、介入步骤。
  - Consequences / Effect：后果声明；Effect 为按 Kind 区分的联合类型。
  - Catalog：基于 Store 的只读缓存，singleflight 合并并发加载，
    仅通过 Invalidate 显式失效。
  - Filter：候选筛选管线，依次排除类别、最近使用的代码、能量/张力区间
    （包含而非重叠）、AI 数量、可生成种子的场景、必需角色，
    最后按偏好类别稳定分区。

# 排序

候选按使用次数升序、平均参与度降序排列，在分散使用的同时偏向表现良好的场景。
*/
package scene
