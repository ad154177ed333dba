package logger

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Components are the subsystems that fetch their logger by name.
var Components = []string{"scheduler", "process", "watch"}

var components = struct {
	sync.RWMutex
	byName map[string]*Logger
}{byName: make(map[string]*Logger)}

// RegisterComponents derives one logger per component from base and
// registers it. A level under levels replaces base's level for that
// component only; components named only in levels are registered too.
func RegisterComponents(base *Logger, levels map[string]string, names ...string) error {
	all := append([]string{}, names...)
	for name := range levels {
		if !contains(all, name) {
			all = append(all, name)
		}
	}
	for _, name := range all {
		l := base.WithComponent(name)
		if lv, ok := levels[name]; ok {
			parsed, err := zerolog.ParseLevel(lv)
			if err != nil {
				return fmt.Errorf("logging.components.%s: %w", name, err)
			}
			l = &Logger{logger: l.logger.Level(parsed), service: l.service, component: name}
		}
		Register(name, l)
	}
	return nil
}

// Register stores l as the logger of component name.
func Register(name string, l *Logger) {
	components.Lock()
	defer components.Unlock()
	components.byName[name] = l
}

// Get returns the logger registered for component name, falling back to
// the global logger tagged with name.
func Get(name string) *Logger {
	components.RLock()
	l, ok := components.byName[name]
	components.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}
