package domain

// 提取失败类别（对外稳定的 error_code 值）。
const (
	// FailUnsupportedContainer 表示容器格式可识别，但当前运行时不具备解码能力。
	FailUnsupportedContainer = "unsupported_container"
	// FailDecodeOrRead 表示文件存在但无法读取/不是可解码的图片。
	FailDecodeOrRead = "decode_failed"
	// FailNoUsableTimestamp 表示文件可解码，但所有层都没有找到合法时间。
	FailNoUsableTimestamp = "no_timestamp"
)

// ExtractionOutcome 是单个文件一次扫描的终态结果。
//
// 约束：
// - OK=true 当且仅当找到了非空且格式合法的时间戳（YYYYMMDD_HHMMSS）；
//   找到但畸形的时间一律降级为失败，不允许“部分成功”
// - 失败时 CameraModel 仍可能非空（沿途捞到的机型文本，仅供展示）
type ExtractionOutcome struct {
	OK bool

	Timestamp   string // canonical：YYYYMMDD_HHMMSS
	CameraModel string
	BaseName    string // "{Timestamp}_{CameraModel}"

	FailKind string // OK=false 时为上面三个常量之一
}

// Success 构造成功结果；BaseName 由时间戳与机型确定性拼接。
func Success(timestamp, cameraModel string) ExtractionOutcome {
	return ExtractionOutcome{
		OK:          true,
		Timestamp:   timestamp,
		CameraModel: cameraModel,
		BaseName:    timestamp + "_" + cameraModel,
	}
}

// Failure 构造失败结果；cameraModel 允许携带沿途发现的机型文本。
func Failure(kind, cameraModel string) ExtractionOutcome {
	return ExtractionOutcome{FailKind: kind, CameraModel: cameraModel}
}
