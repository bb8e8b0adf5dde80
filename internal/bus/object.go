package bus

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

// Object is a single D-Bus interface exported at an object path.
type Object interface {
	// Interface returns the D-Bus interface name of the object.
	Interface() string

	// Methods returns the method table. Every value must be a func whose
	// last return value is *dbus.Error.
	Methods() map[string]interface{}

	// Properties returns the read-only property getters. Every value must be
	// a func taking no arguments and returning exactly one value.
	Properties() map[string]interface{}
}

// Signaler is implemented by objects that emit signals. It is only used to
// describe the signals in the introspection data.
type Signaler interface {
	Signals() []introspect.Signal
}

var dbusErrorType = reflect.TypeOf((*dbus.Error)(nil))

// methodTables expands obj into the method tables of every interface it is
// exported under: its own interface, Properties and Introspectable.
func methodTables(path dbus.ObjectPath, obj Object) (map[string]map[string]interface{}, error) {
	methods := obj.Methods()
	for name, fn := range methods {
		t := reflect.TypeOf(fn)
		if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 || t.Out(t.NumOut()-1) != dbusErrorType {
			return nil, fmt.Errorf("method %s.%s must be a func returning *dbus.Error last", obj.Interface(), name)
		}
	}

	getters := obj.Properties()
	for name, fn := range getters {
		t := reflect.TypeOf(fn)
		if t == nil || t.Kind() != reflect.Func || t.NumIn() != 0 || t.NumOut() != 1 {
			return nil, fmt.Errorf("property %s.%s must be a func with no arguments and one result", obj.Interface(), name)
		}
	}

	node := introspectNode(path, obj)
	return map[string]map[string]interface{}{
		obj.Interface():         methods,
		PropertiesInterface:     propertiesTable(obj.Interface(), getters),
		IntrospectableInterface: {"Introspect": introspect.NewIntrospectable(node).Introspect},
	}, nil
}

func propertiesTable(iface string, getters map[string]interface{}) map[string]interface{} {
	get := func(name string) (dbus.Variant, bool) {
		fn, ok := getters[name]
		if !ok {
			return dbus.Variant{}, false
		}
		out := reflect.ValueOf(fn).Call(nil)
		return dbus.MakeVariant(out[0].Interface()), true
	}

	return map[string]interface{}{
		"Get": func(requested, name string) (dbus.Variant, *dbus.Error) {
			if requested != iface {
				return dbus.Variant{}, prop.ErrIfaceNotFound
			}
			v, ok := get(name)
			if !ok {
				return dbus.Variant{}, prop.ErrPropNotFound
			}
			return v, nil
		},
		"GetAll": func(requested string) (map[string]dbus.Variant, *dbus.Error) {
			if requested != iface {
				return nil, prop.ErrIfaceNotFound
			}
			all := make(map[string]dbus.Variant, len(getters))
			for name := range getters {
				all[name], _ = get(name)
			}
			return all, nil
		},
		"Set": func(requested, name string, _ dbus.Variant) *dbus.Error {
			if requested != iface {
				return prop.ErrIfaceNotFound
			}
			if _, ok := getters[name]; !ok {
				return prop.ErrPropNotFound
			}
			return prop.ErrReadOnly
		},
	}
}

// introspectNode describes obj. Argument signatures are derived from the Go
// types of the method and getter funcs, so no getter is called.
func introspectNode(path dbus.ObjectPath, obj Object) *introspect.Node {
	data := introspect.Interface{Name: obj.Interface()}

	methods := obj.Methods()
	for _, name := range sortedKeys(methods) {
		data.Methods = append(data.Methods, describeMethod(name, methods[name]))
	}

	getters := obj.Properties()
	for _, name := range sortedKeys(getters) {
		t := reflect.TypeOf(getters[name]).Out(0)
		data.Properties = append(data.Properties, introspect.Property{
			Name:   name,
			Type:   dbus.SignatureOfType(t).String(),
			Access: "read",
		})
	}

	if s, ok := obj.(Signaler); ok {
		data.Signals = s.Signals()
	}

	return &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			data,
		},
	}
}

func describeMethod(name string, fn interface{}) introspect.Method {
	t := reflect.TypeOf(fn)
	m := introspect.Method{Name: name}
	for i := 0; i < t.NumIn(); i++ {
		m.Args = append(m.Args, introspect.Arg{
			Name:      fmt.Sprintf("in%d", i),
			Type:      dbus.SignatureOfType(t.In(i)).String(),
			Direction: "in",
		})
	}
	for i := 0; i < t.NumOut()-1; i++ {
		m.Args = append(m.Args, introspect.Arg{
			Name:      fmt.Sprintf("out%d", i),
			Type:      dbus.SignatureOfType(t.Out(i)).String(),
			Direction: "out",
		})
	}
	return m
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
