package module

import "reflect"

// PortsOf extracts an interface T from a module's Ports() bundle.
// The bundle may be the port itself or a struct holding it in an
// exported field; ok is false when neither matches
func PortsOf[T any](m Module) (t T, ok bool) {
	p := m.Ports()
	if p == nil {
		return t, false
	}
	if v, direct := p.(T); direct {
		return v, true
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() != reflect.Struct {
		return t, false
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, held := f.Interface().(T); held {
			return v, true
		}
	}
	return t, false
}

// MustPortsOf panics when the port is missing, for wiring done at boot
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic("module: requested port not found on module " + m.Name())
	}
	return v
}
