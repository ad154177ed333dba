package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/kbukum/assetflow/pipeline"
)

// LuaOptions configures a scripted transform. The script must define a
// global function
//
//	function transform(path, content) return path, content end
//
// Returning nil drops the record.
type LuaOptions struct {
	Script string `mapstructure:"script"`
	File   string `mapstructure:"file"`
}

// NewLua builds the lua stage.
func NewLua(opts Options) (pipeline.Stage, error) {
	var o LuaOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Lua(o)
}

// Lua returns a stage that runs a sandboxed Lua function per record. Lua
// states are not goroutine-safe, so each concurrent caller takes its own
// state from a pool.
func Lua(o LuaOptions) (pipeline.Stage, error) {
	code := o.Script
	if o.File != "" {
		if code != "" {
			return nil, errors.New("script and file are mutually exclusive")
		}
		data, err := os.ReadFile(o.File)
		if err != nil {
			return nil, err
		}
		code = string(data)
	}
	if code == "" {
		return nil, errors.New("script or file is required")
	}

	// Compile once up front so syntax errors fail at load time.
	probe, err := newLuaState(code)
	if err != nil {
		return nil, err
	}
	pool := &sync.Pool{New: func() any {
		L, err := newLuaState(code)
		if err != nil {
			return err
		}
		return L
	}}
	pool.Put(probe)

	return pipeline.FlatMap("lua", func(ctx context.Context, rec pipeline.Record) ([]pipeline.Record, error) {
		v := pool.Get()
		L, ok := v.(*lua.LState)
		if !ok {
			return nil, v.(error)
		}
		defer pool.Put(L)
		L.SetContext(ctx)
		defer L.RemoveContext()

		fn := L.GetGlobal("transform")
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true},
			lua.LString(rec.Path()), lua.LString(string(rec.Content()))); err != nil {
			return nil, err
		}
		content := L.Get(-1)
		newPath := L.Get(-2)
		L.Pop(2)

		if newPath == lua.LNil {
			return nil, nil
		}
		out := rec.WithPath(lua.LVAsString(newPath))
		if content != lua.LNil {
			out = out.WithContent([]byte(lua.LVAsString(content)))
		}
		return []pipeline.Record{out}, nil
	}), nil
}

func newLuaState(code string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		open(L)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua: %w", err)
	}
	if fn := L.GetGlobal("transform"); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, errors.New("lua: script does not define transform(path, content)")
	}
	return L, nil
}
