package errcode

import (
	"errors"

	"resumate/internal/parser"
)

// 错误码约定：失败作业必须携带具体原因码，调用方据此区分
// “文件不支持”“处理超时”等不同的用户可见表现，禁止笼统报错。
const (
	OK                = "OK"
	UnsupportedFormat = "UNSUPPORTED_FORMAT"
	OCRUnavailable    = "OCR_UNAVAILABLE"
	Cancelled         = "CANCELLED"
	Timeout           = "TIMEOUT"
	ParseError        = "PARSE_ERROR"
)

// FromError 把流水线错误映射到原因码。
// 未落入致命集合的错误统一归为 ParseError（重试耗尽后的瞬态失败）。
func FromError(err error) string {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return UnsupportedFormat
	case errors.Is(err, parser.ErrOCRUnavailable):
		return OCRUnavailable
	case errors.Is(err, parser.ErrCancelled):
		return Cancelled
	case errors.Is(err, parser.ErrDeadlineExceeded):
		return Timeout
	default:
		return ParseError
	}
}
