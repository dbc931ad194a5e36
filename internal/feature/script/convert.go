package script

import (
	"fmt"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds conversion of nested values.
const maxDepth = 32

// ToLua converts a Go value to a Lua value. Maps with string keys become
// tables, slices become array tables and exported struct fields become table
// fields named by their `lua` tag or Go name. Values with no Lua
// representation become userdata.
func ToLua(L *lua.LState, v any) lua.LValue {
	return toLua(L, v, 0)
}

func toLua(L *lua.LState, v any, depth int) lua.LValue {
	if v == nil || depth > maxDepth {
		return lua.LNil
	}

	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, toLua(L, item, depth+1))
		}
		return t
	case []any:
		t := L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item, depth+1))
		}
		return t
	case []string:
		t := L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	}
	return reflectToLua(L, reflect.ValueOf(v), depth)
}

// reflectToLua handles pointers, typed slices, typed maps and structs.
func reflectToLua(L *lua.LState, rv reflect.Value, depth int) lua.LValue {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return toLua(L, rv.Elem().Interface(), depth+1)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return lua.LNil
		}
		t := L.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, toLua(L, rv.Index(i).Interface(), depth+1))
		}
		return t

	case reflect.Map:
		if rv.IsNil() {
			return lua.LNil
		}
		t := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := toLua(L, iter.Key().Interface(), depth+1)
			if k == lua.LNil {
				continue
			}
			t.RawSet(k, toLua(L, iter.Value().Interface(), depth+1))
		}
		return t

	case reflect.Struct:
		rt := rv.Type()
		t := L.CreateTable(0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			key := field.Name
			if tag, _, _ := strings.Cut(field.Tag.Get("lua"), ","); tag != "" {
				if tag == "-" {
					continue
				}
				key = tag
			}
			t.RawSetString(key, toLua(L, rv.Field(i).Interface(), depth+1))
		}
		return t

	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	}

	ud := L.NewUserData()
	ud.Value = rv.Interface()
	return ud
}

// ToGo converts a Lua value to a Go value. Tables whose keys are exactly
// 1..n become []any; other tables become map[string]any. Whole numbers
// become int64. Functions convert to nil and cyclic references are cut.
func ToGo(lv lua.LValue) any {
	return toGo(lv, make(map[*lua.LTable]bool))
}

func toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	default:
		return nil
	}
}

// tableToGo converts t to a slice when its keys are 1..n, otherwise to a map.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprint(toGo(kv, visited))
		default:
			key = k.String()
		}
		m[key] = toGo(v, visited)
	})
	return m
}
