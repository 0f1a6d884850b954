package chromedp_page

import (
	"encoding/json"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/user/webmonitor/internal/tracker"
)

// consoleLevel maps a console API call onto one of the intercepted
// channels. Calls such as console.table or console.dir are not intercepted.
func consoleLevel(t runtime.APIType) (tracker.Level, bool) {
	switch t {
	case runtime.APITypeLog, runtime.APITypeDebug:
		return tracker.LevelLog, true
	case runtime.APITypeInfo:
		return tracker.LevelInfo, true
	case runtime.APITypeWarning:
		return tracker.LevelWarn, true
	case runtime.APITypeError, runtime.APITypeAssert:
		return tracker.LevelError, true
	default:
		return "", false
	}
}

// remoteValue turns a console argument into the closest Go value: decoded
// JSON for primitives and serialisable values, the description otherwise.
func remoteValue(obj *runtime.RemoteObject) any {
	if obj == nil {
		return nil
	}
	if obj.Type == runtime.TypeUndefined {
		return "undefined"
	}
	if raw := []byte(obj.Value); len(raw) > 0 {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	if obj.UnserializableValue != "" {
		return string(obj.UnserializableValue)
	}
	return obj.Description
}

// thrownError extracts name and message from an Error object. Descriptions
// look like "TypeError: x is undefined\n    at ...".
func thrownError(obj *runtime.RemoteObject) *tracker.ThrownError {
	if obj == nil || obj.Subtype != runtime.SubtypeError {
		return nil
	}
	first, _, _ := strings.Cut(obj.Description, "\n")
	name := obj.ClassName
	msg := first
	if n, m, ok := strings.Cut(first, ": "); ok {
		name, msg = n, m
	} else if first == name {
		msg = ""
	}
	return &tracker.ThrownError{Name: name, Message: msg}
}

// exceptionEvent converts a thrown exception. Exceptions whose text mentions
// "(in promise)" are unhandled rejections.
func exceptionEvent(d *runtime.ExceptionDetails) (*tracker.ErrorEvent, *tracker.RejectionEvent) {
	if d == nil {
		return nil, nil
	}
	if strings.Contains(d.Text, "(in promise)") {
		if te := thrownError(d.Exception); te != nil {
			return nil, &tracker.RejectionEvent{Reason: te}
		}
		return nil, &tracker.RejectionEvent{Reason: remoteValue(d.Exception)}
	}
	te := thrownError(d.Exception)
	if te == nil {
		// Non-Error throws ("throw 'boom'") still surface as errors.
		te = &tracker.ThrownError{Name: "Error", Message: tracker.FormatArgs(remoteValue(d.Exception))}
	}
	return &tracker.ErrorEvent{
		Error:    te,
		Filename: d.URL,
		Line:     int(d.LineNumber) + 1, // CDP lines are zero-based
	}, nil
}
