package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/exifren/internal/app/run"
	"github.com/John-Robertt/exifren/internal/config"
	"github.com/John-Robertt/exifren/internal/domain"
	"github.com/John-Robertt/exifren/internal/exif"
	"github.com/John-Robertt/exifren/internal/infra/fsx"
	"github.com/John-Robertt/exifren/internal/infra/imgx"
	"github.com/John-Robertt/exifren/internal/scan"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	exitCode := 0

	var (
		applyFlag    bool
		logLevelFlag string
	)

	runCmd := &cobra.Command{
		Use:   "run [path]",
		Short: "扫描图片 EXIF 并按拍摄时间重命名（默认 dry-run）",
		Long: `扫描 path 下（单层）的图片文件，提取拍摄时间与机型，
规划 "YYYYMMDD_HHMMSS_机型" 形式的新文件名。

默认 dry-run：只输出计划，不改写文件系统。
--apply 才会真正执行重命名，并把报告写入 <path>/exifren-report.json。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			exitCode = runMain(cmd, path, applyFlag, logLevelFlag)
			return nil
		},
	}
	runCmd.Flags().BoolVar(&applyFlag, "apply", false, "执行重命名（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "日志级别：debug|info|warn|error（未指定则读配置文件；最终默认 info）")

	root := &cobra.Command{
		Use:           "exifren",
		Short:         "按 EXIF 拍摄时间批量重命名照片",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		return 2
	}
	return exitCode
}

func runMain(cmd *cobra.Command, path string, apply bool, logLevel string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:        path,
		Apply:       apply,
		ApplySet:    cmd.Flags().Changed("apply"),
		LogLevel:    logLevel,
		LogLevelSet: cmd.Flags().Changed("log-level"),
	})
	if err != nil {
		cwdAbs, _ := filepath.Abs(cwd)
		emitReport(reportForConfigError(cwdAbs, err))
		return 1
	}

	// 日志走 stderr，不污染 stdout 的 JSON 契约。
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(eff.LogLevel).
		With().Timestamp().Logger()

	progressW, interactive := pickProgressWriter()
	var ui *progressUI
	var obs run.Observer
	if interactive {
		ui = newProgressUI(progressW)
		obs = ui
	}

	engine := exif.NewEngine(imgx.DefaultOracle(), logger)
	batch := run.NewBatch(engine, obs, logger)

	exts := eff.Extensions
	if len(exts) == 0 {
		exts = scan.DefaultExtensions()
	}

	if ui != nil {
		ui.Start(eff)
	}

	total, err := batch.SelectFolder(eff.Path, scan.ExtensionSet(exts))
	if err != nil {
		fmt.Fprintf(os.Stderr, "选择文件夹失败：%v\n", err)
		return 1
	}
	logger.Info().Int("files", total).Msg("开始扫描")

	results, err := batch.Scan(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "扫描被取消")
		} else {
			fmt.Fprintf(os.Stderr, "扫描失败：%v\n", err)
		}
		return 1
	}

	var sum *run.Summary
	if eff.Apply {
		s, err := batch.Rename(ctx)
		switch {
		case err == nil:
			sum = &s
		case errors.Is(err, run.ErrNoRenamable):
			// 没有任何成功条目：报告仍然输出（全部为失败条目）。
		default:
			fmt.Fprintf(os.Stderr, "重命名失败：%v\n", err)
			return 1
		}
	}

	rr := run.BuildReport(eff.Path, !eff.Apply, results, sum)

	// apply：报告必须写入 <path>/exifren-report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.Path, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告文件失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive && eff.Apply {
		fmt.Fprintf(progressW, "report: %s\n", filepath.Join(eff.Path, "exifren-report.json"))
	}

	if rr.Summary.Failed > 0 {
		return 1
	}
	return 0
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：planned=%d renamed=%d failed=%d\n",
			rr.Summary.Planned, rr.Summary.Renamed, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.ItemStatusFailed {
					continue
				}
				name := it.Name
				if name == "" {
					name = "<config>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", name, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：planned=%d renamed=%d failed=%d\n",
		rr.Summary.Planned, rr.Summary.Renamed, rr.Summary.Failed,
	)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	rr := domain.NewRunReport(cwdAbs, true)
	rr.Items = append(rr.Items, domain.FileItem{
		Status:    domain.ItemStatusFailed,
		ErrorCode: config.Code(err),
		ErrorMsg:  err.Error(),
	})
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(root, "exifren-report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
