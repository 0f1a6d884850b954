package tracker

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/user/webmonitor/pkg/beacon"
)

// Level names one console output channel.
type Level string

const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists the four intercepted channels.
var Levels = []Level{LevelLog, LevelInfo, LevelWarn, LevelError}

// Channel is one console output function.
type Channel func(args ...any)

// Console is a host page's developer console: four replaceable channels.
type Console struct {
	mu       sync.RWMutex
	channels map[Level]Channel
}

// NewConsole builds a console whose channels all write to out.
func NewConsole(out func(level Level, args ...any)) *Console {
	c := &Console{channels: make(map[Level]Channel, len(Levels))}
	for _, level := range Levels {
		c.channels[level] = func(args ...any) {
			if out != nil {
				out(level, args...)
			}
		}
	}
	return c
}

func (c *Console) Channel(l Level) Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[l]
}

// Replace swaps the channel for l and returns the previous one.
func (c *Console) Replace(l Level, ch Channel) Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.channels[l]
	c.channels[l] = ch
	return prev
}

// Emit calls the current channel for l.
func (c *Console) Emit(l Level, args ...any) {
	if ch := c.Channel(l); ch != nil {
		ch(args...)
	}
}

func (c *Console) Log(args ...any)   { c.Emit(LevelLog, args...) }
func (c *Console) Info(args ...any)  { c.Emit(LevelInfo, args...) }
func (c *Console) Warn(args ...any)  { c.Emit(LevelWarn, args...) }
func (c *Console) Error(args ...any) { c.Emit(LevelError, args...) }

// ConsoleInterceptor decorates console channels with a recording side effect.
type ConsoleInterceptor struct {
	env *env

	mu        sync.Mutex
	installed map[*Console]func()
}

func newConsoleInterceptor(e *env) *ConsoleInterceptor {
	return &ConsoleInterceptor{env: e, installed: make(map[*Console]func())}
}

// Install wraps the four channels of c. Installing on the same console again
// is a no-op that returns the same uninstall func.
func (ci *ConsoleInterceptor) Install(c *Console) (uninstall func()) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if u, ok := ci.installed[c]; ok {
		return u
	}

	originals := make(map[Level]Channel, len(Levels))
	for _, level := range Levels {
		original := c.Channel(level)
		originals[level] = original
		c.Replace(level, func(args ...any) {
			ci.env.safe("console", func() { ci.record(level, args) })
			if original != nil {
				original(args...)
			}
			ci.env.safe("console", ci.env.flush)
		})
	}

	var once sync.Once
	u := func() {
		once.Do(func() {
			for level, original := range originals {
				c.Replace(level, original)
			}
			ci.mu.Lock()
			delete(ci.installed, c)
			ci.mu.Unlock()
		})
	}
	ci.installed[c] = u
	return u
}

func (ci *ConsoleInterceptor) record(level Level, args []any) {
	ci.env.buf.AddConsoleEntry(beacon.ConsoleEntry{
		Type:      string(level),
		Message:   FormatArgs(args...),
		Timestamp: beacon.At(ci.env.now()),
	})
}

// FormatArgs joins console arguments with single spaces. Object-typed
// arguments (maps, structs, slices) are rendered as JSON.
func FormatArgs(args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return strings.Join(parts, " ")
}

func formatArg(a any) string {
	switch v := a.(type) {
	case nil:
		return "null"
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case json.RawMessage:
		return string(v)
	}

	rv := reflect.ValueOf(a)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "null"
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Sprintf("%v", a)
		}
		return string(b)
	default:
		return fmt.Sprint(rv.Interface())
	}
}
