package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// ItemStatusPlanned 表示 dry-run 下提取成功并已分配预览名。
	ItemStatusPlanned = "planned"
	// ItemStatusRenamed 表示 apply 下实际完成了重命名。
	ItemStatusRenamed = "renamed"
	// ItemStatusFailed 表示提取或重命名失败（error_code 给出类别）。
	ItemStatusFailed = "failed"
)

// ErrCodeRenameFailed 是 rename 阶段 I/O 失败的 error_code。
const ErrCodeRenameFailed = "rename_failed"

// RunReport 是对外稳定输出（stdout JSON / exifren-report.json）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []FileItem    `json:"items"`
}

type ReportSummary struct {
	Planned int `json:"planned"`
	Renamed int `json:"renamed"`
	Failed  int `json:"failed"`

	// Failed 的按类别细分（与条目的 error_code 一一对应）。
	NoTimestamp  int `json:"no_timestamp,omitempty"`
	DecodeFailed int `json:"decode_failed,omitempty"`
	Unsupported  int `json:"unsupported_container,omitempty"`
	RenameFailed int `json:"rename_failed,omitempty"`
}

// FileItem 是单个输入文件的一条结果记录（每个文件恰好一条）。
type FileItem struct {
	Name        string `json:"name"`
	Timestamp   string `json:"timestamp,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	NewName     string `json:"new_name,omitempty"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// NewRunReport 构造带 run_id 的空报告（StartedAt 取当前 UTC）。
func NewRunReport(path string, dryRun bool) RunReport {
	return RunReport{
		RunID:     uuid.NewString(),
		Path:      path,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Items:     make([]FileItem, 0, 128),
	}
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出
//
// 注意：items 不排序。条目顺序即文件发现顺序，顺序本身是对外契约。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case ItemStatusPlanned:
			s.Planned++
		case ItemStatusRenamed:
			s.Renamed++
		case ItemStatusFailed:
			s.Failed++
			switch it.ErrorCode {
			case FailNoUsableTimestamp:
				s.NoTimestamp++
			case FailDecodeOrRead:
				s.DecodeFailed++
			case FailUnsupportedContainer:
				s.Unsupported++
			case ErrCodeRenameFailed:
				s.RenameFailed++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
