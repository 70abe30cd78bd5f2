package httperr

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"tourhub/pkg/logging"
)

// faultEnvelope 错误响应信封
//
// 4xx 的 status 为 "fail"，5xx 为 "error"；
// error 字段仅开发模式填充。
type faultEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// Translator 集中式错误翻译器，整个进程唯一的暴露策略决策点
type Translator struct {
	Dev    bool // 开发模式：所有错误全量透出
	Logger *logging.Logger
}

// NewTranslator 创建翻译器
func NewTranslator(dev bool, logger *logging.Logger) *Translator {
	return &Translator{Dev: dev, Logger: logger}
}

// Write 翻译并写出错误响应
//
// 生产模式下程序性错误只返回通用消息并记录服务端日志；
// 非 /api 路径返回渲染的错误页面而非 JSON。
func (t *Translator) Write(w http.ResponseWriter, r *http.Request, err error) {
	e := Classify(err)

	if e.Kind == KindInternal {
		t.Logger.WithError(e.Err).Error("unhandled error",
			"method", r.Method, "path", r.URL.Path)
	}

	if t.Dev {
		t.writeJSON(w, e, true)
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api") {
		t.writePage(w, e)
		return
	}
	t.writeJSON(w, e, false)
}

func (t *Translator) writeJSON(w http.ResponseWriter, e *Error, verbose bool) {
	body := faultEnvelope{
		Status:  statusWord(e.Code),
		Message: e.Message,
	}
	if verbose {
		body.Kind = kindName(e.Kind)
		if e.Err != nil {
			body.Error = e.Err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(body)
}

// errorPage 生产模式下浏览器页面请求的错误视图
var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

func (t *Translator) writePage(w http.ResponseWriter, e *Error) {
	message := e.Message
	if e.Kind == KindInternal {
		message = "Please try again later"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(e.Code)
	errorPage.Execute(w, map[string]string{
		"Title":   "Something went wrong!",
		"Message": message,
	})
}

// statusWord 4xx → "fail"，5xx → "error"
func statusWord(code int) string {
	if code >= 500 {
		return "error"
	}
	return "fail"
}

func kindName(k Kind) string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindCast:
		return "cast"
	case KindTokenMalformed:
		return "token_malformed"
	case KindTokenExpired:
		return "token_expired"
	case KindOperational:
		return "operational"
	default:
		return "internal"
	}
}
