package log

import (
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

const (
	modulePath    = "github.com/xeptore/beater"
	maxStackDepth = 32
)

// stackHook attaches the call stack of error-and-above events, limited to
// frames of this module.
type stackHook struct{}

func (stackHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.ErrorLevel {
		return
	}

	arr := zerolog.Arr()
	for _, f := range moduleFrames(2) {
		arr.Dict(zerolog.Dict().
			Str("function", strings.TrimPrefix(f.Function, modulePath+"/")).
			Str("file", f.File).
			Int("line", f.Line),
		)
	}
	e.Array("stack", arr)
}

func moduleFrames(skip int) []runtime.Frame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}

	out := make([]runtime.Frame, 0, n)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if strings.HasPrefix(f.Function, modulePath) && !isHookFrame(f.Function) {
			out = append(out, f)
		}
		if !more {
			break
		}
	}

	return out
}

func isHookFrame(fn string) bool {
	return strings.HasSuffix(fn, "/log.stackHook.Run") || strings.HasSuffix(fn, "/log.moduleFrames")
}
