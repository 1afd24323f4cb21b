// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package types

import (
	"reflect"
	"strings"
	"sync"
)

// Registry maps wire type names to Go types
type Registry interface {
	// Register records the type of the given value or reflect.Type
	Register(v any)
	// Deregister removes the type of the given value from the registry
	Deregister(v any)
	// Exists return true when the type of the given value is in the registry
	Exists(v any) bool
	// TypeOf returns the registered type for the given name
	TypeOf(name string) (reflect.Type, bool)
	// New returns a pointer to a zero value of the type registered under name
	New(name string) (any, bool)
	// Len returns the number of registered types
	Len() int
}

type registry struct {
	mu       sync.RWMutex
	typesMap map[string]reflect.Type
}

var _ Registry = (*registry)(nil)

// NewRegistry creates a new types registry
func NewRegistry() Registry {
	return &registry{
		typesMap: make(map[string]reflect.Type),
	}
}

// Register records the type of the given value or reflect.Type
func (r *registry) Register(v any) {
	rtype := reflectType(v)
	if rtype == nil {
		return
	}
	r.mu.Lock()
	r.typesMap[typeName(rtype)] = rtype
	r.mu.Unlock()
}

// Deregister removes the type of the given value from the registry
func (r *registry) Deregister(v any) {
	r.mu.Lock()
	delete(r.typesMap, TypeName(v))
	r.mu.Unlock()
}

// Exists return true when the type of the given value is in the registry
func (r *registry) Exists(v any) bool {
	r.mu.RLock()
	_, ok := r.typesMap[TypeName(v)]
	r.mu.RUnlock()
	return ok
}

// TypeOf returns the registered type for the given name
func (r *registry) TypeOf(name string) (reflect.Type, bool) {
	r.mu.RLock()
	out, ok := r.typesMap[lowTrim(name)]
	r.mu.RUnlock()
	return out, ok
}

// New returns a pointer to a zero value of the type registered under name
func (r *registry) New(name string) (any, bool) {
	rtype, ok := r.TypeOf(name)
	if !ok {
		return nil, false
	}
	return reflect.New(rtype).Interface(), true
}

// Len returns the number of registered types
func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.typesMap)
}

// reflectType returns the runtime type of the given value with any pointer indirection removed
func reflectType(v any) reflect.Type {
	var rtype reflect.Type
	switch _type := v.(type) {
	case nil:
		return nil
	case reflect.Type:
		rtype = _type
	default:
		rtype = reflect.TypeOf(v)
	}

	for rtype.Kind() == reflect.Ptr {
		rtype = rtype.Elem()
	}
	return rtype
}

// TypeName returns the wire name of the given value.
// A value and a pointer to it share the same name.
func TypeName(v any) string {
	rtype := reflectType(v)
	if rtype == nil {
		return ""
	}
	return typeName(rtype)
}

func typeName(rtype reflect.Type) string {
	return lowTrim(rtype.String())
}

// lowTrim trim any space and lower the string value
func lowTrim(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
