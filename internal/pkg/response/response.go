package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// codeErr carries the API error code through proxyutil's fail path,
// which extracts it via the Code() accessor.
type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string { return e.msg }
func (e codeErr) Code() uint32  { return e.code }

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

// Success writes the standard {code:0, msg, data} envelope.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes the envelope with a nonzero code. HTTP status stays 200;
// clients dispatch on the embedded code.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}
