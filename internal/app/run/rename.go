package run

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/exifren/internal/app/planner"
	"github.com/John-Robertt/exifren/internal/domain"
	"github.com/John-Robertt/exifren/internal/infra/fsx"
)

// executeRenames 按计划顺序串行执行重命名。
//
// 硬规则：
// - 目标名在执行时刻按“claimed ∪ 磁盘现状”重新结算（planner.Actual），
//   计划里的 Target 只是预览，不直接使用
// - 单条失败只记该条失败，继续后面的计划
// - ctx 取消后，剩余计划全部标记为失败（保证计划与结果一一对应），不再落盘
func executeRenames(ctx context.Context, plans []domain.RenamePlan, obs Observer, log zerolog.Logger) (ok, fail int, outs []domain.RenameOutcome) {
	claimed := make(map[string]struct{}, len(plans))
	outs = make([]domain.RenameOutcome, 0, len(plans))

	cancelled := false
	for i := range plans {
		p := plans[i]

		if !cancelled && ctx.Err() != nil {
			cancelled = true
		}
		if cancelled {
			fail++
			outs = append(outs, domain.RenameOutcome{
				SrcAbs: p.SrcAbs,
				ErrMsg: "已取消：" + ctx.Err().Error(),
			})
			if obs != nil {
				obs.OnRenameProgress(i+1, len(plans))
			}
			continue
		}

		name := planner.Actual(p.BaseName, p.Ext, p.Dir, claimed)
		dst := filepath.Join(p.Dir, name)

		if err := fsx.Rename(p.SrcAbs, dst); err != nil {
			// 失败的目标名没有落位，不进 claimed，后续计划仍可使用。
			fail++
			outs = append(outs, domain.RenameOutcome{SrcAbs: p.SrcAbs, DstAbs: dst, ErrMsg: err.Error()})
			log.Warn().Str("src", p.SrcAbs).Str("dst", dst).Err(err).Msg("重命名失败")
		} else {
			claimed[name] = struct{}{}
			ok++
			outs = append(outs, domain.RenameOutcome{SrcAbs: p.SrcAbs, DstAbs: dst, OK: true})
		}

		if obs != nil {
			obs.OnRenameProgress(i+1, len(plans))
		}
	}
	return ok, fail, outs
}
