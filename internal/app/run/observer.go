package run

// Observer 用于把“扫描/重命名进度”从核心状态机中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件在持锁之外发出；实现不得回调 Batch 的公开方法（会死锁或拿到 Busy）。
type Observer interface {
	// OnScanProgress 在每个文件提取结束后调用（current 从 1 开始）。
	OnScanProgress(current, total int)
	// OnScanFinished 在扫描阶段整体结束时调用，携带全部条目结果。
	OnScanFinished(results []FileOutcome)
	// OnRenameProgress 在每条计划处理结束后调用（含失败与取消的条目）。
	OnRenameProgress(current, total int)
	// OnRenameFinished 在重命名阶段整体结束时调用。
	OnRenameFinished(success, failure int)
}
