package run

import (
	"path/filepath"
	"time"

	"github.com/John-Robertt/exifren/internal/domain"
)

// BuildReport 把扫描结果（以及可选的重命名汇总）组装为对外稳定的 RunReport。
// sum 为 nil 表示 dry-run：成功条目状态为 planned，new_name 是预览名。
// 条目顺序与 results 一致，即文件发现顺序。
func BuildReport(path string, dryRun bool, results []FileOutcome, sum *Summary) domain.RunReport {
	rr := domain.NewRunReport(path, dryRun)

	ri := 0 // sum.Outcomes 与“提取成功的条目”按顺序对齐
	for _, fo := range results {
		item := domain.FileItem{
			Name:        fo.File.Name,
			CameraModel: fo.Outcome.CameraModel,
		}

		if !fo.Outcome.OK {
			item.Status = domain.ItemStatusFailed
			item.ErrorCode = fo.Outcome.FailKind
			item.ErrorMsg = failMsg(fo.Outcome.FailKind)
			rr.Items = append(rr.Items, item)
			continue
		}

		item.Timestamp = fo.Outcome.Timestamp
		if sum == nil || ri >= len(sum.Outcomes) {
			item.NewName = fo.Planned
			item.Status = domain.ItemStatusPlanned
		} else {
			out := sum.Outcomes[ri]
			ri++
			if out.OK {
				item.NewName = filepath.Base(out.DstAbs)
				item.Status = domain.ItemStatusRenamed
			} else {
				item.NewName = fo.Planned
				item.Status = domain.ItemStatusFailed
				item.ErrorCode = domain.ErrCodeRenameFailed
				item.ErrorMsg = out.ErrMsg
			}
		}
		rr.Items = append(rr.Items, item)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func failMsg(kind string) string {
	switch kind {
	case domain.FailUnsupportedContainer:
		return "容器格式可识别，但当前运行时不支持解码该格式"
	case domain.FailDecodeOrRead:
		return "文件无法读取或不是可解码的图片"
	case domain.FailNoUsableTimestamp:
		return "未在任何元数据层找到可用的拍摄时间"
	default:
		return ""
	}
}
